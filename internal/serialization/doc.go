// Package serialization writes converted checkpoints to disk.
//
// Two output encodings are supported:
//
//	SafeTensors:
//	  [8 bytes: header size (uint64 LE)]
//	  [header: JSON, space padded to 8-byte alignment]
//	  [tensor data: raw little-endian bytes, ordered by tensor name]
//
//	Torch (.ckpt, loadable with torch.load):
//	  zip archive, stored entries
//	    archive/data.pkl     pickle protocol 2: {"state_dict": {...}}
//	    archive/data/<n>     raw little-endian storage bytes
//	    archive/byteorder    "little"
//	    archive/version      "3"
//
// SafeTensors holds tensors only; Save refuses a StateDict with any other
// value. The Torch encoding also carries numbers, strings, lists and nested
// mappings.
//
// Example usage:
//
//	err := serialization.Save("model-ema-only-half.safetensors", sd,
//	    checkpoint.FormatSafeTensors, serialization.WriteOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
package serialization
