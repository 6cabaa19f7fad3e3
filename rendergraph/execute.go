package rendergraph

import (
	"context"

	"github.com/forgeengine/vkr/backend"
	"github.com/forgeengine/vkr/vkrerr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Execute replays the most recent Compile's plan against rec: records each
// pass's synthesized barriers, brackets graphics passes in the cached
// render pass/framebuffer, and invokes its ExecuteFn with packet threaded
// through opaquely.
func (g *Graph) Execute(ctx context.Context, rec backend.CommandRecorder, packet any) error {
	if !g.compiled {
		return vkrerr.New(vkrerr.NotInitialized, "rendergraph: Execute called before a successful Compile")
	}
	ctx, span := g.tracer.Start(ctx, "rendergraph.Execute")
	defer span.End()

	for _, idx := range g.executionOrder {
		p := g.passes[idx]
		_, passSpan := g.tracer.Start(ctx, "rendergraph.pass", trace.WithAttributes(attribute.String("pass.name", p.name)))
		if err := g.executePass(rec, p, packet); err != nil {
			passSpan.End()
			return vkrerr.Wrap(vkrerr.BackendError, err, "rendergraph: pass %q", p.name)
		}
		passSpan.End()
	}
	return nil
}

func (g *Graph) executePass(rec backend.CommandRecorder, p *Pass, packet any) error {
	for _, b := range p.barriers {
		if err := rec.RecordBarrier(b); err != nil {
			return err
		}
	}
	if p.ptype == PassGraphics {
		if err := rec.BeginRenderPass(p.compiledPass, p.compiledFB); err != nil {
			return err
		}
		defer rec.EndRenderPass()
	}
	if p.executeFn == nil {
		return nil
	}
	return p.executeFn(rec, p.userData, packet)
}
