package serialization

import (
	"archive/zip"
	"fmt"
	"io"
	"path"

	"github.com/born-ml/ckptconv/internal/checkpoint"
)

// torchArchiveName is the record prefix torch.save uses for a file named "archive".
const torchArchiveName = "archive"

// torchFormatVersion is the zip serialization version written to archive/version.
const torchFormatVersion = "3\n"

// WriteTorch writes sd to path as a torch.save zip archive holding {"state_dict": sd}.
// The pickle is encoded before the file is created, so an unsupported value
// leaves no file behind.
func WriteTorch(path string, sd *checkpoint.StateDict, opts WriteOptions) error {
	wrapped := checkpoint.NewStateDict()
	wrapped.Set(checkpoint.StateDictKey, sd)

	p := newPickler()
	if err := p.dump(wrapped); err != nil {
		return err
	}

	return writeFile(path, opts.Overwrite, func(w io.Writer) error {
		return writeTorchArchive(w, p)
	})
}

// writeTorchArchive lays out an encoded pickle and its storages the way
// torch.save does: data.pkl first, one entry per storage, then byteorder and version.
func writeTorchArchive(w io.Writer, p *pickler) error {
	zw := zip.NewWriter(w)

	if err := writeZipEntry(zw, "data.pkl", p.buf.Bytes()); err != nil {
		return err
	}
	for _, s := range p.storages {
		if err := writeZipEntry(zw, path.Join("data", s.key), s.data); err != nil {
			return err
		}
	}
	if err := writeZipEntry(zw, "byteorder", []byte("little")); err != nil {
		return err
	}
	if err := writeZipEntry(zw, "version", []byte(torchFormatVersion)); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

// writeZipEntry stores data uncompressed under archive/name.
func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:   path.Join(torchArchiveName, name),
		Method: zip.Store,
	})
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}
