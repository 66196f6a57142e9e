package app

import (
	"github.com/hashicorp/go-hclog"

	"github.com/ftl/mfp/core/proc"
)

// NewLogGUI returns a GUI that only logs the notifications it receives.
func NewLogGUI(logger hclog.Logger) *LogGUI {
	return &LogGUI{logger: logger.Named("gui")}
}

// LogGUI is used when the application runs without a user interface.
type LogGUI struct {
	logger hclog.Logger
}

func (g *LogGUI) Configure(p *proc.Processor) {
	g.logger.Trace("configure", "proc", p.String(), "status", p.Status.String())
}

func (g *LogGUI) Command(p *proc.Processor, action string, data interface{}) {
	g.logger.Debug(action, "proc", p.String(), "data", data)
}

func (g *LogGUI) Connect(source *proc.Processor, outlet int, target *proc.Processor, inlet int) {
	g.logger.Trace("connect", "source", source.String(), "outlet", outlet, "target", target.String(), "inlet", inlet)
}

func (g *LogGUI) Disconnect(source *proc.Processor, outlet int, target *proc.Processor, inlet int) {
	g.logger.Trace("disconnect", "source", source.String(), "outlet", outlet, "target", target.String(), "inlet", inlet)
}

func (g *LogGUI) Delete(p *proc.Processor) {
	g.logger.Trace("delete", "proc", p.String())
}
