package gallery

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm/clause"
)

// seedFile is the layout of a places seed file:
//
//	places:
//	  - name: Phuket
//	    url: https://example.com/phuket.jpg
//	    description: Island beaches on the Andaman Sea.
type seedFile struct {
	Places []PlaceImage `yaml:"places"`
}

// LoadSeed parses a places seed document.
func LoadSeed(r io.Reader) ([]PlaceImage, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	seen := make(map[string]int, len(f.Places))
	for i, p := range f.Places {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("seed entry %d: name is required", i)
		}
		if strings.TrimSpace(p.URL) == "" {
			return nil, fmt.Errorf("seed entry %q: url is required", name)
		}
		key := strings.ToLower(name)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("seed entry %q duplicates entry %d", name, prev)
		}
		seen[key] = i
		f.Places[i].Name = name
	}

	return f.Places, nil
}

// Seed loads the seed file at path and upserts its rows by name.
func (r *Repository) Seed(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open seed: %w", err)
	}
	defer file.Close()

	places, err := LoadSeed(file)
	if err != nil {
		return 0, err
	}
	return r.Upsert(ctx, places)
}

// Upsert inserts places, replacing the url and description of rows that
// already exist under the same name.
func (r *Repository) Upsert(ctx context.Context, places []PlaceImage) (int, error) {
	if len(places) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "description", "updated_at"}),
	}).Create(&places)
	if result.Error != nil {
		return 0, fmt.Errorf("%w: upsert places: %v", ErrLookup, result.Error)
	}

	r.logger.Info("Seeded %d place images", len(places))
	return len(places), nil
}
