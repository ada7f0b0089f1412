package block

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogEntry - описание блока в YAML-каталоге
type CatalogEntry struct {
	ID        int    `yaml:"id"`
	Name      string `yaml:"name"`
	Opacity   *int   `yaml:"opacity"`
	Luminance *int   `yaml:"luminance"`
}

// Catalog - корень YAML-файла с блоками
type Catalog struct {
	Blocks []CatalogEntry `yaml:"blocks"`
}

// overridden подменяет световые свойства, сохраняя поведение провайдера
type overridden struct {
	Provider
	name      string
	opacity   byte
	luminance byte
}

func (o *overridden) Name() string       { return o.name }
func (o *overridden) LightOpacity() byte { return o.opacity }
func (o *overridden) Luminance() byte    { return o.luminance }

// LoadCatalog читает YAML-каталог и применяет его к реестру.
// Известные блоки сохраняют поведение, новые регистрируются как Standard.
func LoadCatalog(path string, reg *Registry) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return ApplyCatalog(data, reg)
}

// ApplyCatalog применяет YAML-каталог из памяти
func ApplyCatalog(data []byte, reg *Registry) (int, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return 0, fmt.Errorf("parse block catalog: %w", err)
	}

	for i, e := range cat.Blocks {
		if e.ID < 0 || e.ID > 0xFF {
			return i, fmt.Errorf("block catalog entry %d: id %d out of range", i, e.ID)
		}
		id := ID(e.ID)
		existing := reg.Provider(id)

		name := e.Name
		var opacity, luminance byte
		if existing != nil {
			opacity, luminance = existing.LightOpacity(), existing.Luminance()
			if name == "" {
				name = existing.Name()
			}
		}
		if e.Opacity != nil {
			if *e.Opacity < 0 || *e.Opacity > 0xFF {
				return i, fmt.Errorf("block %s: opacity %d out of range", id, *e.Opacity)
			}
			opacity = byte(*e.Opacity)
		}
		if e.Luminance != nil {
			if *e.Luminance < 0 || *e.Luminance > 15 {
				return i, fmt.Errorf("block %s: luminance %d out of range", id, *e.Luminance)
			}
			luminance = byte(*e.Luminance)
		}

		if existing == nil {
			reg.Register(&Standard{BlockID: id, BlockName: name, Opacity: opacity, Light: luminance})
			continue
		}
		if o, ok := existing.(*overridden); ok {
			existing = o.Provider
		}
		reg.Register(&overridden{Provider: existing, name: name, opacity: opacity, luminance: luminance})
	}
	return len(cat.Blocks), nil
}
