// Package loader reads checkpoint files into memory.
//
// Two encodings are supported, chosen by file suffix:
//   - SafeTensors (.safetensors): keyed tensor container, read with a pure Go reader
//   - PyTorch checkpoints (anything else): zip or legacy pickles, decoded with gopickle
//
// Every tensor is copied into host memory as a contiguous *tensor.RawTensor.
// Mappings become *checkpoint.StateDict in file order; other pickled values
// (numbers, strings, lists) are kept as plain Go values.
//
// Example:
//
//	root, err := loader.Load("path/to/model.ckpt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sd := checkpoint.Unwrap(root)
package loader
