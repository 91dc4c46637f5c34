package translator

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// top-level keys with a fixed meaning; everything else ends up in BuildConfig.Fields
const (
	keyProjectPrefix  = "project_prefix"
	keyStages         = "stages"
	keyPythonVersions = "python_versions"
	keyPlatforms      = "platforms"
	keyArches         = "arches"
	keyExclusions     = "exclusions"
	keyContainers     = "containers"
)

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
}

// decode parses raw into the root mapping node. Workflows pass the JSON config into docker
// containers as a quoted string so a single pair of surrounding quotes is dropped.
func decode(raw string) (*yaml.Node, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		raw = strings.TrimSpace(raw[1 : len(raw)-1])
	}

	if raw == "" {
		return nil, eris.Wrap(ErrConfigParse, "config is empty")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, eris.Wrapf(ErrConfigParse, "failed to decode config: %s", err.Error())
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, eris.Wrap(ErrConfigParse, "config is empty")
	}

	if err := rejectAliases(doc.Content[0], "config"); err != nil {
		return nil, err
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, eris.Wrap(ErrConfigParse, "config must be an object")
	}

	return root, nil
}

// rejectAliases fails on YAML aliases. Configs are JSON documents which never contain them.
func rejectAliases(node *yaml.Node, field string) error {
	if node.Kind == yaml.AliasNode {
		return eris.Wrapf(ErrConfigParse, "%s uses a YAML alias (*%s) which isn't supported", field, node.Value)
	}

	for _, child := range node.Content {
		if err := rejectAliases(child, field); err != nil {
			return err
		}
	}

	return nil
}

type mappingEntry struct {
	key   string
	value *yaml.Node
}

func mappingEntries(node *yaml.Node, field string) ([]mappingEntry, error) {
	if node.Kind != yaml.MappingNode {
		return nil, eris.Wrapf(ErrConfigParse, "%s must be an object", field)
	}

	entries := make([]mappingEntry, 0, len(node.Content)/2)
	for idx := 0; idx+1 < len(node.Content); idx += 2 {
		key := node.Content[idx]
		if key.Kind != yaml.ScalarNode {
			return nil, eris.Wrapf(ErrConfigParse, "found a non-string key in %s", field)
		}

		entries = append(entries, mappingEntry{key: key.Value, value: node.Content[idx+1]})
	}

	return entries, nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

func scalarString(node *yaml.Node, field string) (string, error) {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return "", eris.Wrapf(ErrConfigParse, "%s must be a string", field)
	}
	return strings.TrimSpace(node.Value), nil
}

// stringList accepts either a list of scalars or a single string with items separated by commas
// and/or whitespace. Duplicates are dropped, keeping the first occurrence.
func stringList(node *yaml.Node, field string) ([]string, error) {
	var items []string
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			items = strings.Fields(strings.ReplaceAll(node.Value, ",", " "))
		}
	case yaml.SequenceNode:
		for idx, item := range node.Content {
			value, err := scalarString(item, field+"["+strconv.Itoa(idx)+"]")
			if err != nil {
				return nil, err
			}

			if value == "" {
				return nil, eris.Wrapf(ErrConfigParse, "%s[%d] is empty", field, idx)
			}
			items = append(items, value)
		}
	default:
		return nil, eris.Wrapf(ErrConfigParse, "%s must be a list", field)
	}

	result := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result, nil
}

// sdistInclude reads sdist.include from the leaves of the sdist field. It defaults to true.
func sdistInclude(leaves []Leaf) (bool, error) {
	for _, leaf := range leaves {
		if len(leaf.Path) < 2 || normalizeKey(leaf.Path[1]) != "include" {
			continue
		}

		value, err := strconv.ParseBool(leaf.Value)
		if len(leaf.Path) != 2 || err != nil {
			return false, eris.Wrapf(ErrConfigParse, "sdist.include must be a boolean, got %q", leaf.Value)
		}
		return value, nil
	}

	return true, nil
}

func collectLeaves(path []string, node *yaml.Node, out []Leaf) ([]Leaf, error) {
	field := strings.Join(path, ".")

	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return out, nil
		}

		leaf := Leaf{
			Path:  append([]string(nil), path...),
			Value: node.Value,
		}
		if node.Tag == "!!bool" {
			var value bool
			if err := node.Decode(&value); err != nil {
				return nil, eris.Wrapf(ErrConfigParse, "%s: %s", field, err.Error())
			}

			leaf.Value = strconv.FormatBool(value)
			leaf.IsBool = true
		}

		return append(out, leaf), nil
	case yaml.MappingNode:
		entries, err := mappingEntries(node, field)
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			out, err = collectLeaves(append(path, entry.key), entry.value, out)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	case yaml.SequenceNode:
		var err error
		for idx, item := range node.Content {
			out, err = collectLeaves(append(path, strconv.Itoa(idx)), item, out)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	return nil, eris.Wrapf(ErrConfigParse, "unsupported value for %s", field)
}

// ParseBuildConfig decodes the raw configuration. It fails with ErrConfigParse if raw is not an
// object or lacks project_prefix and with ErrUnknownProjectPrefix if the prefix isn't supported.
func ParseBuildConfig(ctx context.Context, raw string) (*BuildConfig, error) {
	root, err := decode(raw)
	if err != nil {
		return nil, err
	}

	entries, err := mappingEntries(root, "config")
	if err != nil {
		return nil, err
	}

	cfg := &BuildConfig{Fields: make(map[string][]Leaf)}
	var prefix *yaml.Node
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		key := normalizeKey(entry.key)
		switch key {
		case keyProjectPrefix, keyStages, keyPythonVersions, keyPlatforms, keyArches:
			if seen[key] {
				return nil, eris.Wrapf(ErrConfigParse, "duplicate field %s", entry.key)
			}
			seen[key] = true
		}

		switch key {
		case keyProjectPrefix:
			prefix = entry.value
		case keyStages:
			if isNull(entry.value) {
				continue
			}

			cfg.Stages, err = parseStages(ctx, entry.value)
		case keyPythonVersions:
			cfg.PythonVersions, err = stringList(entry.value, entry.key)
		case keyPlatforms:
			cfg.Platforms, err = stringList(entry.value, entry.key)
		case keyArches:
			cfg.Arches, err = stringList(entry.value, entry.key)
		default:
			if _, present := cfg.Fields[entry.key]; present {
				return nil, eris.Wrapf(ErrConfigParse, "duplicate field %s", entry.key)
			}

			cfg.Fields[entry.key], err = collectLeaves([]string{entry.key}, entry.value, nil)
			if err == nil && key == "sdist" {
				_, err = sdistInclude(cfg.Fields[entry.key])
			}
		}

		if err != nil {
			return nil, err
		}
	}

	if prefix == nil {
		return nil, eris.Wrap(ErrConfigParse, "missing required field project_prefix")
	}

	value, err := scalarString(prefix, keyProjectPrefix)
	if err != nil {
		return nil, err
	}

	cfg.Project, err = ParseProjectPrefix(value)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseStages(ctx context.Context, node *yaml.Node) ([]Stage, error) {
	entries, err := mappingEntries(node, keyStages)
	if err != nil {
		return nil, err
	}

	stages := make([]Stage, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if seen[entry.key] {
			return nil, eris.Wrapf(ErrConfigParse, "stage %s is declared twice", entry.key)
		}
		seen[entry.key] = true

		stage, err := parseStage(ctx, entry.key, entry.value)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}

	sort.Slice(stages, func(i, j int) bool {
		return stages[i].Name < stages[j].Name
	})
	return stages, nil
}

func parseStage(ctx context.Context, name string, node *yaml.Node) (Stage, error) {
	stage := Stage{Name: name}
	entries, err := mappingEntries(node, "stage "+name)
	if err != nil {
		return stage, err
	}

	for _, entry := range entries {
		field := "stages." + name + "." + entry.key
		switch normalizeKey(entry.key) {
		case keyPlatforms:
			stage.Platforms, err = parsePlatformList(entry.value, field)
		case keyPythonVersions:
			stage.PythonVersions, err = parseVersionList(entry.value, field)
		case keyExclusions:
			stage.Exclusions, err = parseExclusions(entry.value, field)
		case keyContainers:
			stage.Containers, err = parseContainers(entry.value, field)
		default:
			log(ctx).Debug().Str("stage", name).Msgf("Ignoring unknown stage field %s", entry.key)
		}

		if err != nil {
			return stage, err
		}
	}

	return stage, nil
}

func parsePlatformList(node *yaml.Node, field string) ([]string, error) {
	items, err := stringList(node, field)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(items))
	for _, item := range items {
		platform, err := ParsePlatform(item)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid entry in %s", field)
		}

		if !contains(result, platform.ID) {
			result = append(result, platform.ID)
		}
	}

	return result, nil
}

func parseVersionList(node *yaml.Node, field string) ([]string, error) {
	items, err := stringList(node, field)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if err := checkPythonVersion(item); err != nil {
			return nil, eris.Wrapf(err, "invalid entry in %s", field)
		}
	}

	return items, nil
}

func parseExclusions(node *yaml.Node, field string) ([]Exclusion, error) {
	if isNull(node) {
		return nil, nil
	}

	if node.Kind != yaml.SequenceNode {
		return nil, eris.Wrapf(ErrConfigParse, "%s must be a list of [platform, version] pairs", field)
	}

	result := make([]Exclusion, 0, len(node.Content))
	for idx, item := range node.Content {
		itemField := field + "[" + strconv.Itoa(idx) + "]"

		var platform, version string
		var err error
		switch item.Kind {
		case yaml.SequenceNode:
			if len(item.Content) != 2 {
				return nil, eris.Wrapf(ErrConfigParse, "%s must have exactly two entries", itemField)
			}

			platform, err = scalarString(item.Content[0], itemField)
			if err == nil {
				version, err = scalarString(item.Content[1], itemField)
			}
		case yaml.MappingNode:
			entries, mErr := mappingEntries(item, itemField)
			if mErr != nil {
				return nil, mErr
			}

			for _, entry := range entries {
				switch normalizeKey(entry.key) {
				case "platform":
					platform, err = scalarString(entry.value, itemField+".platform")
				case "python_version":
					version, err = scalarString(entry.value, itemField+".python_version")
				default:
					err = eris.Wrapf(ErrConfigParse, "unknown field %s in %s", entry.key, itemField)
				}

				if err != nil {
					break
				}
			}

			if err == nil && (platform == "" || version == "") {
				err = eris.Wrapf(ErrConfigParse, "%s needs both platform and python_version", itemField)
			}
		default:
			err = eris.Wrapf(ErrConfigParse, "%s must be a [platform, version] pair", itemField)
		}

		if err != nil {
			return nil, err
		}

		result = append(result, Exclusion{
			Platform:      strings.ToLower(platform),
			PythonVersion: version,
		})
	}

	return result, nil
}

func parseContainers(node *yaml.Node, field string) (map[string]string, error) {
	if isNull(node) {
		return nil, nil
	}

	entries, err := mappingEntries(node, field)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(entries))
	for _, entry := range entries {
		platform, err := ParsePlatform(entry.key)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid key in %s", field)
		}

		result[platform.ID], err = scalarString(entry.value, field+"."+entry.key)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}
