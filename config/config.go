// Package config loads the supported-presentation-context table the
// cmd/dicomulsrv demo server negotiates against, from a YAML file in the
// same field-tag style flatmapit-crgodicom's internal/config uses.
package config

import (
	"fmt"
	"os"

	"github.com/mjpearson/dicomul/negotiate"
	"gopkg.in/yaml.v3"
)

// Config is the demo server's entire configuration surface: its AE title,
// the maximum PDU size it advertises, and the presentation contexts it is
// willing to accept.
type Config struct {
	AETitle           string                      `yaml:"ae_title"`
	MaxPDUSize        uint32                      `yaml:"max_pdu_size"`
	ImplementationUID string                      `yaml:"implementation_class_uid"`
	Contexts          []PresentationContextConfig `yaml:"presentation_contexts"`
}

// PresentationContextConfig is one entry of Config.Contexts: an abstract
// syntax this server supports, the transfer syntaxes it can decode for it,
// and which side's preference order negotiate.Accept consults first.
type PresentationContextConfig struct {
	AbstractSyntax   string   `yaml:"abstract_syntax"`
	TransferSyntaxes []string `yaml:"transfer_syntaxes"`
	ScpPriority      bool     `yaml:"scp_priority"`
}

// DefaultAETitle is used when a loaded config omits ae_title.
const DefaultAETitle = "DICOMULSRV"

// Default returns the configuration the demo server runs with when no
// config file is supplied: the Verification SOP class only, under both
// Implicit and Explicit VR Little Endian.
func Default() *Config {
	return &Config{
		AETitle:           DefaultAETitle,
		ImplementationUID: "1.2.840.10008.5.1.4.1.1.1.dicomul",
		Contexts: []PresentationContextConfig{
			{
				AbstractSyntax: "1.2.840.10008.1.1",
				TransferSyntaxes: []string{
					"1.2.840.10008.1.2",
					"1.2.840.10008.1.2.1",
				},
			},
		},
	}
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if c.AETitle == "" {
		c.AETitle = DefaultAETitle
	}
	return &c, nil
}

// SupportedContexts converts Contexts into the negotiate package's input
// shape.
func (c *Config) SupportedContexts() []negotiate.SupportedContext {
	out := make([]negotiate.SupportedContext, 0, len(c.Contexts))
	for _, pc := range c.Contexts {
		out = append(out, negotiate.SupportedContext{
			AbstractSyntax:   pc.AbstractSyntax,
			TransferSyntaxes: pc.TransferSyntaxes,
			ScpPriority:      pc.ScpPriority,
		})
	}
	return out
}
