// This file implements the import entry points, Kleio text and the JSONL
// feed, and the JSONL export of everything stored.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mesh-intelligence/timelink/pkg/kleio"
	"github.com/mesh-intelligence/timelink/pkg/types"
)

// ImportKleio parses Kleio notation from r and stores every group. The
// groups inside a kleio document header are stored as top-level entities.
func (b *Backend) ImportKleio(ctx context.Context, r io.Reader) (types.ImportStats, error) {
	var stats types.ImportStats
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return stats, types.ErrNotAttached
	}

	roots, err := kleio.Parse(r, b.shapes, kleio.NewContext())
	if err != nil {
		return stats, err
	}
	for _, root := range roots {
		targets := []*kleio.Group{root}
		if root.Shape.IsA("kleio") {
			targets = root.Children()
		}
		for _, g := range targets {
			n, err := b.storeGroup(ctx, g)
			stats.Groups += n
			if err != nil {
				return stats, err
			}
		}
	}
	b.log.Info("imported kleio", "groups", stats.Groups)
	return stats, nil
}

// ImportFeed reads a JSONL feed of class, attribute and group records and
// applies them in order. Malformed lines and records of unknown kind are
// skipped. Unknown fields are ignored. Groups must follow their parents.
func (b *Backend) ImportFeed(ctx context.Context, r io.Reader) (types.ImportStats, error) {
	var stats types.ImportStats
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return stats, types.ErrNotAttached
	}

	records, skipped, err := readJSONL(r)
	stats.Skipped = skipped
	if err != nil {
		return stats, err
	}

	for i, raw := range records {
		var k recordKind
		if err := json.Unmarshal(raw, &k); err != nil {
			stats.Skipped++
			continue
		}
		switch k.Kind {
		case kindClass:
			var rec classJSON
			if err := json.Unmarshal(raw, &rec); err != nil {
				stats.Skipped++
				continue
			}
			class, attrs := rec.mapping()
			if err := b.upsertClass(ctx, class, attrs); err != nil {
				return stats, fmt.Errorf("record %d: %w", i+1, err)
			}
			stats.Classes++
		case kindAttribute:
			var rec attributeJSON
			if err := json.Unmarshal(raw, &rec); err != nil {
				stats.Skipped++
				continue
			}
			if err := b.putAttribute(ctx, rec.attribute()); err != nil {
				return stats, fmt.Errorf("record %d: %w", i+1, err)
			}
		case kindGroup:
			var rec groupJSON
			if err := json.Unmarshal(raw, &rec); err != nil {
				stats.Skipped++
				continue
			}
			g, err := b.feedGroup(rec)
			if err != nil {
				return stats, &types.ImportError{ID: rec.ID, Group: rec.Name, Err: err}
			}
			if err := b.storeOne(ctx, g, rec.ParentID); err != nil {
				return stats, err
			}
			stats.Groups++
		default:
			b.log.Debug("skipping feed record", "record", i+1, "kind", k.Kind)
			stats.Skipped++
		}
	}
	b.log.Info("imported feed", "classes", stats.Classes, "groups", stats.Groups, "skipped", stats.Skipped)
	return stats, nil
}

// feedGroup builds an unchecked group from a feed record. Group names with
// no shape get one extending the base shape.
func (b *Backend) feedGroup(rec groupJSON) (*kleio.Group, error) {
	if rec.Name == "" {
		return nil, fmt.Errorf("group without name: %w", kleio.ErrSyntax)
	}
	shape, ok := b.shapes.Shape(rec.Name)
	if !ok {
		var err error
		if shape, err = b.shapes.Extend(kleio.BaseShape, rec.Name); err != nil {
			return nil, err
		}
	}
	g, err := shape.New(nil, nil, kleio.Unchecked(), kleio.WithShapeID(rec.ShapeID))
	if err != nil {
		return nil, err
	}
	g.Order, g.Level, g.Line = rec.Order, rec.Level, rec.Line

	for _, el := range rec.Elements {
		typ := shape.ElementType(el.Name)
		if el.SemanticClass != "" && el.SemanticClass != kleio.RootElement {
			if t, ok := b.shapes.Elements.ResolveFor(el.SemanticClass); ok {
				typ = t
			}
		}
		e := &kleio.Element{Name: el.Name, Core: el.Core, Comment: el.Comment, Original: el.Original, Type: typ}
		if err := g.SetElement(e); err != nil {
			return nil, err
		}
	}
	if g.ID() == "" && rec.ID != "" {
		g.SetID(rec.ID)
	}
	return g, nil
}

// Export writes every class, then every entity depth first, parents before
// children, to path as JSONL. It returns the number of entities written.
func (b *Backend) Export(ctx context.Context, path string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return 0, types.ErrNotAttached
	}

	var values []any
	classes, err := b.classes(ctx)
	if err != nil {
		return 0, err
	}
	for _, c := range classes {
		class, attrs, err := b.getClass(ctx, b.db, c.ID)
		if err != nil {
			return 0, err
		}
		values = append(values, toClassJSON(*class, attrs))
	}

	count := 0
	var walk func(parentID string) error
	walk = func(parentID string) error {
		kids, err := b.children(ctx, parentID)
		if err != nil {
			return err
		}
		for _, e := range kids {
			g, err := b.entityToGroup(e)
			if err != nil {
				return err
			}
			values = append(values, toGroupJSON(g, e.ParentID))
			count++
			if err := walk(e.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(""); err != nil {
		return 0, err
	}

	records, err := marshalRecords(values)
	if err != nil {
		return 0, err
	}
	if err := writeJSONL(path, records); err != nil {
		return 0, err
	}
	b.log.Info("exported", "path", path, "classes", len(classes), "groups", count)
	return count, nil
}
