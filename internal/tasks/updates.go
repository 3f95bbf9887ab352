package tasks

import (
	"fmt"

	"github.com/desertthunder/wavecrawl/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ListJobs Phase = iota
	ProcessJob
	LoadPage
	ExtractChannel
	ExtractTracklist
	ResolveTracks
	SaveResults
	FinishJob
)

func (p Phase) String() string {
	switch p {
	case ListJobs:
		return "list_jobs"
	case ProcessJob:
		return "process_job"
	case LoadPage:
		return "load_page"
	case ExtractChannel:
		return "extract_channel"
	case ExtractTracklist:
		return "extract_tracklist"
	case ResolveTracks:
		return "resolve_tracks"
	case SaveResults:
		return "save_results"
	case FinishJob:
		return "finish_job"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func listedJobsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListJobs,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d pending job(s)", count),
	}
}

func processJobUpdate(step, total int, job models.PlaylistJob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ProcessJob,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Processing %s (attempt %d of %d)", step, total, job.URL, job.RetryCount+1, job.MaxRetries),
		Data:    job,
	}
}

func loadPageUpdate(url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadPage,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loading %s...", url),
	}
}

func channelUpdate(ch models.ChannelInfo) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractChannel,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Channel: %s (%s)", ch.Name, ch.Handle),
		Data:    ch,
	}
}

func tracklistUpdate(count int, source models.TracklistSource) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractTracklist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d track(s) in %s", count, source),
	}
}

func resolveTrackUpdate(step, total int, tr models.MusicTrack) ProgressUpdate {
	mark := "✓"
	if !tr.Resolved() {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s - %s", step, total, mark, tr.Artist, tr.Title),
		Data:    tr,
	}
}

func saveResultsUpdate(job models.PlaylistJob, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveResults,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saving %d track(s) for job %s", tracks, job.ID),
	}
}

func finishJobUpdate(step, total int, job models.PlaylistJob, status models.JobStatus, err error) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s %s", step, total, job.URL, status)
	if err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s %s: %v", step, total, job.URL, status, err)
	}
	return ProgressUpdate{
		Phase:   FinishJob,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    status,
	}
}
