package stadiums

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// fileSchema is the YAML layout of a catalog override:
//
//	stadiums:
//	  - id: jamsil
//	    name: 잠실야구장
//	    team: LG/두산
//	    lat: 37.5122
//	    lon: 127.0719
//	    model: s3://models/kbo_jamsil_model.json.zst
type fileSchema struct {
	Stadiums []Definition `koanf:"stadiums"`
}

// Load returns the catalog at path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile parses a YAML catalog file. The file fully replaces the built-in
// table; stadiums are served in file order.
func LoadFile(path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading stadium catalog %s: %w", path, err)
	}

	var schema fileSchema
	if err := k.UnmarshalWithConf("", &schema, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding stadium catalog %s: %w", path, err)
	}

	c, err := New(schema.Stadiums)
	if err != nil {
		return nil, fmt.Errorf("stadium catalog %s: %w", path, err)
	}
	return c, nil
}
