package sim

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// TextBoxColor is a background/foreground color pair in "#RRGGBB" form.
type TextBoxColor struct {
	Bg string `yaml:"bg"`
	Fg string `yaml:"fg"`
}

// DefaultTextBoxColor is used when no color is configured.
var DefaultTextBoxColor = TextBoxColor{Bg: "#FFFFFF", Fg: "#000000"}

var hexColor = regexp.MustCompile(`^#([0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})$`)

// CarInfo is the static description of a car model.
type CarInfo struct {
	Name         string `yaml:"name"`
	Manufacturer string `yaml:"manufacturer"`
	Class        string `yaml:"class"`
}

// ClassInfo configures one car class.
type ClassInfo struct {
	Color        TextBoxColor `yaml:"color"`
	Replacements []string     `yaml:"replacements"` // classes whose reference laps may stand in
}

// CarInfoCatalog maps car model identifiers to static info, and classes and cups to colors.
type CarInfoCatalog struct {
	Cars    map[string]CarInfo      `yaml:"cars"`
	Classes map[string]ClassInfo    `yaml:"classes"`
	Cups    map[string]TextBoxColor `yaml:"cups"`
}

// NewCarInfoCatalog returns an empty catalog.
func NewCarInfoCatalog() *CarInfoCatalog {
	return &CarInfoCatalog{
		Cars:    make(map[string]CarInfo),
		Classes: make(map[string]ClassInfo),
		Cups:    make(map[string]TextBoxColor),
	}
}

// LoadCarInfoCatalog reads and validates a YAML car-info catalog.
func LoadCarInfoCatalog(path string) (*CarInfoCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading car info catalog: %w", err)
	}
	return ParseCarInfoCatalog(data)
}

// ParseCarInfoCatalog decodes a YAML car-info catalog with strict field checking.
func ParseCarInfoCatalog(data []byte) (*CarInfoCatalog, error) {
	c := NewCarInfoCatalog()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return nil, fmt.Errorf("parsing car info catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks colors and replacement references.
func (c *CarInfoCatalog) Validate() error {
	for name, info := range c.Classes {
		if err := validateColor(info.Color); err != nil {
			return fmt.Errorf("class %q: %w", name, err)
		}
		for _, r := range info.Replacements {
			if r == name {
				return fmt.Errorf("class %q lists itself as a replacement", name)
			}
		}
	}
	for name, color := range c.Cups {
		if err := validateColor(color); err != nil {
			return fmt.Errorf("cup %q: %w", name, err)
		}
	}
	return nil
}

func validateColor(c TextBoxColor) error {
	if c.Bg != "" && !hexColor.MatchString(c.Bg) {
		return fmt.Errorf("invalid background color %q", c.Bg)
	}
	if c.Fg != "" && !hexColor.MatchString(c.Fg) {
		return fmt.Errorf("invalid foreground color %q", c.Fg)
	}
	return nil
}

// Lookup returns the info of a car model.
func (c *CarInfoCatalog) Lookup(carName string) (CarInfo, bool) {
	if c == nil {
		return CarInfo{}, false
	}
	info, ok := c.Cars[carName]
	return info, ok
}

// ClassColor returns the configured color of a class.
func (c *CarInfoCatalog) ClassColor(class string) (TextBoxColor, bool) {
	if c == nil {
		return TextBoxColor{}, false
	}
	info, ok := c.Classes[class]
	if !ok || info.Color == (TextBoxColor{}) {
		return TextBoxColor{}, false
	}
	return info.Color, true
}

// CupColor returns the configured color of a cup category.
func (c *CarInfoCatalog) CupColor(cup string) (TextBoxColor, bool) {
	if c == nil {
		return TextBoxColor{}, false
	}
	color, ok := c.Cups[cup]
	return color, ok
}

// Replacements returns, per class, the ordered replacement classes.
func (c *CarInfoCatalog) Replacements() map[string][]string {
	out := make(map[string][]string)
	if c == nil {
		return out
	}
	for name, info := range c.Classes {
		if len(info.Replacements) > 0 {
			out[name] = info.Replacements
		}
	}
	return out
}

// manufacturerFromModel guesses the manufacturer as the first word of the model name.
func manufacturerFromModel(model string) string {
	fields := strings.Fields(model)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
