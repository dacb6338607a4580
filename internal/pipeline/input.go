package pipeline

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/ingestion"
	"github.com/rpattn/enrollgate/internal/manifest"
)

type inputSource struct {
	format  ingestion.Format
	digest  manifest.Digest
	file    *os.File
	records ingestion.RecordReader
}

func (s *inputSource) Close() error {
	var err error
	if s.records != nil {
		err = s.records.Close()
	}
	if cerr := s.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// openInput resolves the format, hashes the input and opens its adapter.
// Every failure here is fatal for the run.
func (r *Runner) openInput(req Request) (*inputSource, error) {
	format, err := ingestion.ResolveFormat(req.InputPath, req.Format)
	if err != nil {
		return nil, errors.WithHint(err, "use --format csv|json|txt|cobol|xlsx or a recognised file extension")
	}

	file, err := os.Open(req.InputPath)
	if err != nil {
		return nil, errors.Wrap(err, "input is not readable")
	}

	// Hash and decode the same descriptor so the digest covers the judged bytes.
	digest, err := manifest.HashReader(file)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "input is not readable")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "rewind input")
	}

	records, err := ingestion.Open(file, format, r.ingestOpts)
	if err != nil {
		_ = file.Close()
		var ife *ingestion.InputFormatError
		if errors.As(err, &ife) && ife.Path == "" {
			ife.Path = req.InputPath
		}
		return nil, err
	}

	return &inputSource{format: format, digest: digest, file: file, records: records}, nil
}
