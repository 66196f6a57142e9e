package proc

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// GUI is notified about every change of the graph that affects the presentation.
type GUI interface {
	Configure(p *Processor)
	Command(p *Processor, action string, data interface{})
	Connect(source *Processor, outlet int, target *Processor, inlet int)
	Disconnect(source *Processor, outlet int, target *Processor, inlet int)
	Delete(p *Processor)
}

// NullGUI ignores all notifications.
type NullGUI struct{}

func (NullGUI) Configure(*Processor)                        {}
func (NullGUI) Command(*Processor, string, interface{})     {}
func (NullGUI) Connect(*Processor, int, *Processor, int)    {}
func (NullGUI) Disconnect(*Processor, int, *Processor, int) {}
func (NullGUI) Delete(*Processor)                           {}

// GuiLayout is the part of the presentation parameters the engine itself
// cares about.
type GuiLayout struct {
	X           float64 `mapstructure:"position_x"`
	Y           float64 `mapstructure:"position_y"`
	Layer       string  `mapstructure:"layername"`
	DisplayType string  `mapstructure:"display_type"`
}

// Layout decodes the layout from the presentation parameters. Unknown
// parameters are ignored.
func (p *Processor) Layout() (GuiLayout, error) {
	var result GuiLayout
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &result,
	})
	if err != nil {
		return GuiLayout{}, err
	}
	if err := decoder.Decode(p.GuiParams); err != nil {
		return GuiLayout{}, errors.Wrapf(err, "invalid layout of %v", p)
	}
	return result, nil
}
