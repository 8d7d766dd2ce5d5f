package batch

import (
	"errors"
	"fmt"

	"herdscreen/internal/api"
	"herdscreen/internal/journal"
	"herdscreen/internal/result"
	"herdscreen/internal/services"
)

func filterOutcome(res api.JobResult, err error) journal.Outcome {
	if err != nil {
		return journal.Outcome{Status: journal.StatusFailed, Message: err.Error()}
	}
	out := journal.Outcome{Status: journal.StatusSucceeded}
	switch v := res.(type) {
	case api.LegacyResult:
		out.ResultShape = string(result.ShapeLegacy)
		out.TotalCount = &v.TotalRows
		out.MatchedCount = &v.FilteredRows
		out.FilterRate = result.Ratio(v.FilteredRows, v.TotalRows)
	case api.CurrentResult:
		out.ResultShape = string(result.ShapeCurrent)
		out.TotalCount = &v.OriginalCowCount
		out.MatchedCount = &v.FinalCowCount
		out.FilterRate = v.FilterRate.String()
	}
	if res != nil {
		out.Message = res.Text()
		out.DownloadURL = res.Download()
	}
	return out
}

func uploadOutcome(message string, err error, batch *api.BatchUploadResponse) journal.Outcome {
	var partial *services.PartialBatchFailure
	switch {
	case errors.As(err, &partial):
		return journal.Outcome{Status: journal.StatusPartial, Message: partial.Error()}
	case err != nil:
		return journal.Outcome{Status: journal.StatusFailed, Message: err.Error()}
	}
	out := journal.Outcome{Status: journal.StatusSucceeded, Message: message}
	if batch != nil {
		ok := int64(len(batch.SuccessFiles))
		total := ok + int64(len(batch.FailedFiles))
		out.TotalCount = &total
		out.MatchedCount = &ok
		if out.Message == "" {
			out.Message = fmt.Sprintf("%d file(s) uploaded", ok)
		}
	}
	return out
}
