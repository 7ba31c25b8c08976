package loader

import (
	"fmt"
	"sort"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize  = 100 * 1024 * 1024 // 100MB - maximum SafeTensors header size
	MaxTensorCount = 1_000_000         // Maximum number of tensors in a file
)

// ValidateTensorOffsets checks SafeTensors header entries against the data section:
// known dtype, valid shape, byte size matching dtype and shape, no negative
// offsets, no reads past the end, no overlapping regions.
func ValidateTensorOffsets(tensors map[string]SafeTensorInfo, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	type region struct {
		name       string
		start, end int64
	}
	regions := make([]region, 0, len(tensors))

	for name, info := range tensors {
		start, end := info.DataOffsets[0], info.DataOffsets[1]
		if start < 0 || end < start {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  name,
				Details: fmt.Sprintf("data_offsets [%d, %d]", start, end),
			}
		}
		if end > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  name,
				Details: fmt.Sprintf("end %d > data_size %d", end, dataSize),
			}
		}

		dtype, err := safeTensorsDTypeToDataType(info.DType)
		if err != nil {
			return &ValidationError{Type: "invalid_dtype", Tensor: name, Details: err.Error()}
		}
		for _, dim := range info.Shape {
			if dim < 0 {
				return &ValidationError{
					Type:    "invalid_shape",
					Tensor:  name,
					Details: fmt.Sprintf("shape %v", info.Shape),
				}
			}
		}
		numel := int64(1)
		for _, dim := range info.Shape {
			numel *= int64(dim)
		}
		if want := numel * int64(dtype.Size()); end-start != want {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  name,
				Details: fmt.Sprintf("%s%v needs %d bytes, data_offsets span %d", info.DType, info.Shape, want, end-start),
			}
		}

		regions = append(regions, region{name: name, start: start, end: end})
	}

	// Sort by offset for efficient overlap detection.
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].start != regions[j].start {
			return regions[i].start < regions[j].start
		}
		return regions[i].name < regions[j].name
	})
	for i := 0; i < len(regions)-1; i++ {
		cur, next := regions[i], regions[i+1]
		if cur.end > next.start {
			return &ValidationError{
				Type:    "offset_overlap",
				Tensor:  cur.name,
				Tensor2: next.name,
				Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", cur.start, cur.end, next.start, next.end),
			}
		}
	}

	return nil
}
