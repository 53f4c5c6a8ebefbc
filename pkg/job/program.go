package job

import (
	"fmt"
	"io"

	"github.com/chazu/layercam/pkg/gcode"
)

// Program joins task results into one command stream. The spindle is
// started before the first task of each tool and stopped when the tool
// changes; failed tasks leave a comment and nothing else.
func Program(p *Plan, results []Result) []gcode.Command {
	var cmds []gcode.Command
	current := ""
	spinning := false
	stop := func() {
		if spinning {
			cmds = append(cmds, gcode.SpindleOff())
			spinning = false
		}
	}

	for _, r := range results {
		if r.Err != nil {
			cmds = append(cmds, gcode.Comment(fmt.Sprintf("%s skipped: %v", r.Name, r.Err)))
			continue
		}
		if len(r.Commands) == 0 {
			continue
		}
		if r.Tool != current {
			stop()
			cmds = append(cmds, gcode.Comment("tool "+r.Tool))
			current = r.Tool
		}
		if !spinning && p.Spindle.RPM > 0 {
			cmds = append(cmds, gcode.SpindleOn(p.Spindle.RPM))
			if p.Spindle.Dwell > 0 {
				cmds = append(cmds, gcode.Dwell(p.Spindle.Dwell))
			}
			spinning = true
		}
		cmds = append(cmds, gcode.Comment(r.Name))
		cmds = append(cmds, r.Commands...)
	}
	stop()
	return append(cmds, gcode.End())
}

// Write renders the program for results to out.
func Write(out io.Writer, p *Plan, results []Result) error {
	return gcode.WriteProgram(out, p.Dialect, Program(p, results))
}
