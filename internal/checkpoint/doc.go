// Package checkpoint holds the in-memory checkpoint model and the conversion
// pass that filters, renames and casts its entries.
//
// A checkpoint is an insertion-ordered StateDict mapping parameter names to
// tensors or opaque metadata. Transform applies one conversion Mode and one
// target Precision and returns a fresh StateDict:
//
//	sd := checkpoint.Unwrap(root)
//	out := checkpoint.Transform(sd, checkpoint.EMAOnly, checkpoint.FP16)
//
// EMA shadow parameters are recognized by the "model_ema." key prefix. The
// two EMA bookkeeping scalars (model_ema.num_updates, model_ema.decay) are
// never renamed into the output.
package checkpoint
