package reload

import (
	"time"

	"github.com/extkit/cli/internal/entry"
)

// Notify tells connected clients what to reload for a batch of changed
// files. Paths are source-root-relative slash paths, as delivered by the
// watcher.
//
// A batch touching only page files reloads just the affected pages. Any
// change to the background, a content script, or a file that cannot be
// attributed reloads the whole extension: reload-background first, then
// reload-content after a short delay so the restarted service worker is
// up before tabs refresh.
func (s *Session) Notify(changed []string, ents *entry.Entries) {
	if State(s.state.Load()) != StateActive {
		return
	}
	if pageOnly(changed, ents) {
		s.broadcast(MessageReloadPage)
		return
	}
	s.broadcast(MessageReloadBackground)
	time.Sleep(s.delay)
	s.broadcast(MessageReloadContent)
}

func pageOnly(changed []string, ents *entry.Entries) bool {
	if len(changed) == 0 {
		return false
	}
	for _, rel := range changed {
		if !ents.IsPageSource(rel) {
			return false
		}
	}
	return true
}
