package preflight

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/Aman-CERP/linesearch/internal/corpus"
	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
	"github.com/Aman-CERP/linesearch/internal/logging"
)

// CheckCorpus loads the corpus the way the server does and reports its
// size. Invalid UTF-8 and an empty file are warnings.
func (c *Checker) CheckCorpus(path string) CheckResult {
	result := CheckResult{
		Name:     "corpus",
		Required: true,
	}

	if path == "" {
		result.Status = StatusFail
		result.Message = "corpus.path is not set"
		return result
	}

	store, err := corpus.New(corpus.Options{Path: path, Logger: logging.Discard()})
	if err != nil {
		result.Status = StatusFail
		result.Message = lserrors.Message(err)
		return result
	}
	snap, err := store.Reload(context.Background())
	if err != nil {
		result.Status = StatusFail
		result.Message = lserrors.Message(err)
		result.Details = path
		return result
	}

	var size uint64
	if info, err := os.Stat(path); err == nil {
		size = uint64(info.Size())
	}
	result.Message = fmt.Sprintf("%s lines, %s", humanize.Comma(int64(len(snap.Lines))), humanize.IBytes(size))
	result.Details = path

	invalid := 0
	for _, line := range snap.Lines {
		if !utf8.ValidString(line) {
			invalid++
		}
	}

	switch {
	case len(snap.Lines) == 0:
		result.Status = StatusWarn
		result.Message = "corpus is empty; every query will be NOT_FOUND"
	case invalid > 0:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s (%d lines are not valid UTF-8)", result.Message, invalid)
	default:
		result.Status = StatusPass
	}
	return result
}
