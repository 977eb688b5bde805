// Package catalog decodes the patch catalog handed to the editor at startup:
// the patch being configured and the ordered build variants with the tasks
// each one defines.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformed marks catalog payloads that cannot produce a valid matrix.
var ErrMalformed = errors.New("catalog: malformed")

// Patch identifies the patch the selection will be submitted against.
type Patch struct {
	ID          string `json:"Id" yaml:"Id"`
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
	Author      string `json:"Author,omitempty" yaml:"Author,omitempty"`
}

// TaskDef names one task a variant can run.
type TaskDef struct {
	Name string `json:"Name" yaml:"Name"`
}

// VariantDef describes one build variant. ID comes from the mapping key in
// the catalog document, not from the body.
type VariantDef struct {
	ID          string    `json:"-" yaml:"-"`
	DisplayName string    `json:"DisplayName" yaml:"DisplayName"`
	Tasks       []TaskDef `json:"Tasks" yaml:"Tasks"`
}

// TaskNames returns the variant's task names in catalog order.
func (v VariantDef) TaskNames() []string {
	names := make([]string, 0, len(v.Tasks))
	for _, t := range v.Tasks {
		names = append(names, t.Name)
	}
	return names
}

// Catalog is the immutable input the matrix is built from. Variants keep the
// order in which they appear in the source document.
type Catalog struct {
	Patch    Patch
	Variants []VariantDef
}

// Variant looks up a definition by id.
func (c Catalog) Variant(id string) (VariantDef, bool) {
	for _, v := range c.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return VariantDef{}, false
}

type document struct {
	Patch    *Patch    `yaml:"patch"`
	Variants yaml.Node `yaml:"variants"`
}

// Parse decodes a catalog from YAML or JSON. The variants mapping is read
// node by node so document order survives as display order.
func Parse(data []byte) (Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Catalog{}, fmt.Errorf("%w: payload is empty", ErrMalformed)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Catalog{}, fmt.Errorf("%w: decode: %v", ErrMalformed, err)
	}
	if doc.Patch == nil {
		return Catalog{}, fmt.Errorf("%w: patch is required", ErrMalformed)
	}
	patch := Patch{
		ID:          strings.TrimSpace(doc.Patch.ID),
		Description: strings.TrimSpace(doc.Patch.Description),
		Author:      strings.TrimSpace(doc.Patch.Author),
	}
	if patch.ID == "" {
		return Catalog{}, fmt.Errorf("%w: patch.Id is required", ErrMalformed)
	}
	variants, err := decodeVariants(&doc.Variants)
	if err != nil {
		return Catalog{}, err
	}
	return Catalog{Patch: patch, Variants: variants}, nil
}

// LoadFile reads and parses a catalog file from disk.
func LoadFile(path string) (Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Catalog{}, fmt.Errorf("catalog: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return Catalog{}, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// maxMergeDepth bounds nested "<<" merges inside the variants mapping.
const maxMergeDepth = 16

func decodeVariants(node *yaml.Node) ([]VariantDef, error) {
	node = resolveAlias(node)
	if node == nil || node.Kind == 0 {
		return nil, fmt.Errorf("%w: variants is required", ErrMalformed)
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: variants must be a mapping of id to definition", ErrMalformed)
	}
	entries, err := variantEntries(node, 0)
	if err != nil {
		return nil, err
	}
	variants := make([]VariantDef, 0, len(entries))
	for _, e := range entries {
		var def VariantDef
		if err := e.body.Decode(&def); err != nil {
			return nil, fmt.Errorf("%w: variant %q: %v", ErrMalformed, e.id, err)
		}
		def.ID = e.id
		normalized, err := def.normalized()
		if err != nil {
			return nil, err
		}
		variants = append(variants, normalized)
	}
	return variants, nil
}

type variantEntry struct {
	id   string
	body *yaml.Node
}

// variantEntries flattens a variants mapping in document order. A "<<" merge
// contributes its entries at the position it appears; keys written out in
// the mapping itself win over merged ones, and among merged sources the
// first one wins.
func variantEntries(node *yaml.Node, depth int) ([]variantEntry, error) {
	if depth > maxMergeDepth {
		return nil, fmt.Errorf("%w: variants merges nest too deeply", ErrMalformed)
	}
	explicit := map[string]struct{}{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := resolveAlias(node.Content[i])
		if isMergeKey(key) {
			continue
		}
		if key == nil || key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: variant id must be a scalar (line %d)", ErrMalformed, node.Content[i].Line)
		}
		id := strings.TrimSpace(key.Value)
		if id == "" {
			return nil, fmt.Errorf("%w: variant id is required (line %d)", ErrMalformed, node.Content[i].Line)
		}
		if _, dup := explicit[id]; dup {
			return nil, fmt.Errorf("%w: duplicate variant %q", ErrMalformed, id)
		}
		explicit[id] = struct{}{}
	}

	placed := map[string]struct{}{}
	var out []variantEntry
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := resolveAlias(node.Content[i])
		if !isMergeKey(key) {
			id := strings.TrimSpace(key.Value)
			placed[id] = struct{}{}
			out = append(out, variantEntry{id: id, body: node.Content[i+1]})
			continue
		}
		sources, err := mergeSources(node.Content[i+1])
		if err != nil {
			return nil, err
		}
		for _, src := range sources {
			merged, err := variantEntries(src, depth+1)
			if err != nil {
				return nil, err
			}
			for _, e := range merged {
				if _, ok := explicit[e.id]; ok {
					continue
				}
				if _, ok := placed[e.id]; ok {
					continue
				}
				placed[e.id] = struct{}{}
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// mergeSources returns the mappings named by a "<<" value: one mapping or a
// sequence of them, aliases resolved.
func mergeSources(value *yaml.Node) ([]*yaml.Node, error) {
	value = resolveAlias(value)
	var sources []*yaml.Node
	switch {
	case value == nil:
	case value.Kind == yaml.MappingNode:
		sources = append(sources, value)
	case value.Kind == yaml.SequenceNode:
		for _, item := range value.Content {
			sources = append(sources, resolveAlias(item))
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: merge into variants must reference a mapping", ErrMalformed)
	}
	for _, src := range sources {
		if src == nil || src.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: merge into variants must reference a mapping", ErrMalformed)
		}
	}
	return sources, nil
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for depth := 0; node != nil && node.Kind == yaml.AliasNode; depth++ {
		if depth > maxMergeDepth {
			return nil
		}
		node = node.Alias
	}
	return node
}

func isMergeKey(node *yaml.Node) bool {
	return node != nil && node.Kind == yaml.ScalarNode && node.ShortTag() == "!!merge"
}

func (v VariantDef) normalized() (VariantDef, error) {
	clone := VariantDef{
		ID:          v.ID,
		DisplayName: strings.TrimSpace(v.DisplayName),
	}
	if clone.DisplayName == "" {
		clone.DisplayName = clone.ID
	}
	seen := map[string]struct{}{}
	for idx, task := range v.Tasks {
		name := strings.TrimSpace(task.Name)
		if name == "" {
			return VariantDef{}, fmt.Errorf("%w: variant %q: tasks[%d].Name is required", ErrMalformed, v.ID, idx)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		clone.Tasks = append(clone.Tasks, TaskDef{Name: name})
	}
	return clone, nil
}
