package assets

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/soocke/cyclewatch/config"
)

// DefaultConfigYAML contains the annotated starter configuration.
//
//go:embed default.yaml
var DefaultConfigYAML []byte

// DefaultConfig decodes the embedded starter configuration.
func DefaultConfig() (*config.Config, error) {
	if len(DefaultConfigYAML) == 0 {
		return nil, fmt.Errorf("embedded default.yaml is empty")
	}
	cfg := config.DefaultConfig()
	if err := config.Decode(DefaultConfigYAML, false, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefaultConfig writes the starter file to path, refusing to
// overwrite an existing file.
func WriteDefaultConfig(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(DefaultConfigYAML); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
