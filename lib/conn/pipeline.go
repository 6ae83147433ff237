package conn

import (
	"context"
)

// RunBatch resolves a connection for target through chain and sends all
// commands of block together. Commands execute independently, a failing
// command does not abort the others.
//
// Inside an open batch scope on the same target the block joins it, inside
// an open atomic scope on the same target the commands become part of the
// atomic unit.
func RunBatch(ctx context.Context, chain *Chain, target Target, block Block) (*MultiResult, error) {
	ctx, ec, _, release := ensure(ctx)
	defer release()

	if s := ec.currentBatch(); s != nil && s.target == target.String() {
		return join(ctx, s, block)
	}
	if s := ec.currentAtomic(); s != nil && s.target == target.String() {
		return join(ctx, s, block)
	}

	c, err := chain.Resolve(ctx, ec, Selector{Target: target, Kind: KindBatch})
	if err != nil {
		return nil, err
	}
	winner := ec.Winner()

	// an owner resolved the open scope of its parent
	if s := ec.scopeOf(c); s != nil {
		return join(ctx, s, block)
	}
	if !winner.AllowsBatch() {
		return handleFallback(ctx, ec, KindBatch, winner, c, target, block)
	}
	return openScope(ctx, ec, KindBatch, winner, c, target, block)
}

// Pipelined is an alias of RunBatch
func Pipelined(ctx context.Context, chain *Chain, target Target, block Block) (*MultiResult, error) {
	return RunBatch(ctx, chain, target, block)
}
