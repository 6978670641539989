package kleio

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ShapeFile is the YAML form of a list of shape declarations.
//
//	shapes:
//	  - name: casamento
//	    extends: acto
//	    position: [id, data, loc]
//	    synonyms: {loc: loc}
type ShapeFile struct {
	Shapes []ShapeDecl `yaml:"shapes"`
}

// ShapeDecl declares one shape. Lists left out are inherited from the
// shape named in Extends; an explicit empty list clears them.
type ShapeDecl struct {
	Name       string            `yaml:"name"`
	Extends    string            `yaml:"extends"`
	Position   []string          `yaml:"position"`
	Guaranteed []string          `yaml:"guaranteed"`
	Optional   []string          `yaml:"optional"`
	Part       []string          `yaml:"part"`
	Synonyms   map[string]string `yaml:"synonyms"`
	Prefix     string            `yaml:"prefix"`
}

func (d ShapeDecl) options() []ShapeOption {
	var opts []ShapeOption
	if d.Position != nil {
		opts = append(opts, Position(d.Position...))
	}
	if d.Guaranteed != nil {
		opts = append(opts, Guaranteed(d.Guaranteed...))
	}
	if d.Optional != nil {
		opts = append(opts, Optional(d.Optional...))
	}
	if d.Part != nil {
		opts = append(opts, Part(d.Part...))
	}
	if len(d.Synonyms) > 0 {
		opts = append(opts, Synonyms(d.Synonyms))
	}
	if d.Prefix != "" {
		opts = append(opts, Prefix(d.Prefix))
	}
	return opts
}

// LoadShapes reads YAML shape declarations from rd and registers them in
// order, so a declaration may extend one declared earlier in the file.
func LoadShapes(r *Registry, rd io.Reader) ([]*Shape, error) {
	var f ShapeFile
	if err := yaml.NewDecoder(rd).Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse shapes: %w", err)
	}

	out := make([]*Shape, 0, len(f.Shapes))
	for _, d := range f.Shapes {
		parent := d.Extends
		if parent == "" {
			parent = BaseShape
		}
		s, err := r.Extend(parent, d.Name, d.options()...)
		if err != nil {
			return out, fmt.Errorf("shape %s: %w", d.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadShapesFile is LoadShapes over the file at path.
func LoadShapesFile(r *Registry, path string) ([]*Shape, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapes %s: %w", path, err)
	}
	defer f.Close()
	return LoadShapes(r, f)
}
