package job

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chazu/layercam/pkg/gcode"
	"github.com/chazu/layercam/pkg/layers"
	"github.com/chazu/layercam/pkg/logging"
	"github.com/chazu/layercam/pkg/motion"
	"github.com/chazu/layercam/pkg/schedule"
)

// Progress counts scheduled and finished layers across all workers. The
// total grows as operations are scheduled, so a sampled ratio can go down.
type Progress struct {
	done, total atomic.Int64
}

// AddTotal registers n more layers of work.
func (p *Progress) AddTotal(n int) { p.total.Add(int64(n)) }

// Step marks one layer finished.
func (p *Progress) Step() { p.done.Add(1) }

// Snapshot returns the current counts.
func (p *Progress) Snapshot() (done, total int) {
	return int(p.done.Load()), int(p.total.Load())
}

// Result is the outcome of one task. A failed task carries Err and no
// commands; its siblings are unaffected.
type Result struct {
	Name     string
	Tool     string
	Layers   int
	Commands []gcode.Command
	Stats    motion.Stats
	Err      error
}

// Runner executes a Plan.
type Runner struct {
	// Progress is updated while running when set.
	Progress *Progress
}

// Run executes every task of p and returns one Result per task in plan
// order. Tasks sharing a tool run in order on one goroutine; different
// tools run concurrently. A cancelled context returns ctx.Err().
func (r *Runner) Run(ctx context.Context, p *Plan) ([]Result, error) {
	prog := r.Progress
	if prog == nil {
		prog = &Progress{}
	}
	results := make([]Result, len(p.Tasks))
	start := time.Now()

	var wg sync.WaitGroup
	for _, idx := range byTool(p.Tasks) {
		wg.Add(1)
		go func(idx []int) {
			defer wg.Done()
			for _, i := range idx {
				if ctx.Err() != nil {
					return
				}
				results[i] = runTask(ctx, p, p.Tasks[i], prog)
			}
		}(idx)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logging.Logger().Info("job finished", "tasks", len(p.Tasks), "elapsed", time.Since(start))
	return results, nil
}

// byTool groups task indices by tool, in order of first use.
func byTool(tasks []*Task) [][]int {
	var groups [][]int
	seen := make(map[string]int)
	for i, t := range tasks {
		g, ok := seen[t.Tool.Name]
		if !ok {
			g = len(groups)
			seen[t.Tool.Name] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func runTask(ctx context.Context, p *Plan, t *Task, prog *Progress) Result {
	res := Result{Name: t.Name, Tool: t.Tool.Name}
	fail := func(err error) Result {
		res.Err = err
		logging.Logger().Warn("task failed", "task", t.Name, "error", err)
		return res
	}

	infos, err := schedule.Schedule(p.Machine, t.Props, t.Tool, t.Tabs.Enabled())
	if err != nil {
		return fail(fmt.Errorf("schedule: %w", err))
	}
	prog.AddTotal(len(infos))

	b := &layers.Builder{
		Cache:      layers.NewPathCache(t.Planner, t.Props, t.Tabs),
		SpringPass: t.SpringPass,
		Progress:   func(int, int) { prog.Step() },
	}
	cls, err := b.Build(ctx, infos)
	if err != nil {
		return fail(fmt.Errorf("build layers: %w", err))
	}

	s := motion.New(p.Machine, t.Props)
	cmds, err := s.Run(ctx, cls)
	if err != nil {
		return fail(fmt.Errorf("motion: %w", err))
	}
	res.Layers = len(cls)
	res.Commands = cmds
	res.Stats = s.Stats()
	logging.Logger().Debug("task done", "task", t.Name, "tool", t.Tool.Name,
		"layers", len(cls), "commands", len(cmds))
	return res
}
