package reload

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/extkit/cli/internal/manifest"
)

// Strategy selects how running extension contexts learn about rebuilds.
type Strategy string

const (
	// StrategyWebSocket keeps a local WebSocket session that pushes
	// reload messages to injected clients.
	StrategyWebSocket Strategy = "websocket"

	// StrategyPoll injects clients that watch the manifest's dev
	// timestamp. No server runs.
	StrategyPoll Strategy = "poll"
)

// ParseStrategy validates a strategy name from a flag or config file.
// Empty selects the default WebSocket strategy.
func ParseStrategy(value string) (Strategy, error) {
	switch value {
	case "", string(StrategyWebSocket):
		return StrategyWebSocket, nil
	case string(StrategyPoll):
		return StrategyPoll, nil
	default:
		return "", fmt.Errorf("unknown reload strategy %q: valid values are websocket and poll", value)
	}
}

// Scripts holds the reload client code appended to compiled entries, one
// snippet per extension context.
type Scripts struct {
	Background string
	Content    string
	Page       string
}

const (
	portPlaceholder           = "__EXTKIT_PORT__"
	timestampKeyPlaceholder   = "__EXTKIT_TIMESTAMP_KEY__"
	timestampQueryPlaceholder = "__EXTKIT_TIMESTAMP_QUERY__"

	// timestampQuery is the runtime message content scripts send to ask
	// the background context for the current dev timestamp.
	timestampQuery = "extkit:timestamp"
)

// ClientScripts assembles the injection snippets for a strategy. The port
// is only used by the WebSocket strategy.
func ClientScripts(strategy Strategy, port int) Scripts {
	if strategy == StrategyPoll {
		sub := strings.NewReplacer(
			timestampKeyPlaceholder, manifest.DevTimestampKey,
			timestampQueryPlaceholder, timestampQuery,
		)
		return Scripts{
			Background: sub.Replace(pollBackgroundClient),
			Content:    sub.Replace(pollContentClient),
			Page:       sub.Replace(pollPageClient),
		}
	}
	p := strconv.Itoa(port)
	return Scripts{
		Background: strings.ReplaceAll(wsBackgroundClient, portPlaceholder, p),
		Content:    strings.ReplaceAll(wsContentClient, portPlaceholder, p),
		Page:       strings.ReplaceAll(wsPageClient, portPlaceholder, p),
	}
}

const wsBackgroundClient = `// extkit dev reload client (background)
(() => {
  const connect = () => {
    const ws = new WebSocket("ws://127.0.0.1:__EXTKIT_PORT__/reload");
    ws.onmessage = (event) => {
      if (event.data === "reload-background") chrome.runtime.reload();
    };
    ws.onclose = () => setTimeout(connect, 1000);
  };
  connect();
})();`

const wsContentClient = `// extkit dev reload client (content)
(() => {
  const connect = () => {
    const ws = new WebSocket("ws://127.0.0.1:__EXTKIT_PORT__/reload");
    ws.onmessage = (event) => {
      if (event.data === "reload-content") location.reload();
    };
    ws.onclose = () => setTimeout(connect, 1000);
  };
  connect();
})();`

const wsPageClient = `// extkit dev reload client (page)
(() => {
  const connect = () => {
    const ws = new WebSocket("ws://127.0.0.1:__EXTKIT_PORT__/reload");
    ws.onmessage = (event) => {
      if (event.data === "reload-page") location.reload();
    };
    ws.onclose = () => setTimeout(connect, 1000);
  };
  connect();
})();`

const pollBackgroundClient = `// extkit dev reload client (background, poll)
(() => {
  const url = chrome.runtime.getURL("manifest.json");
  const current = () => fetch(url).then((r) => r.json()).then((m) => m["__EXTKIT_TIMESTAMP_KEY__"]);
  chrome.runtime.onMessage.addListener((msg, sender, sendResponse) => {
    if (msg && msg.type === "__EXTKIT_TIMESTAMP_QUERY__") {
      current().then((t) => sendResponse({ timestamp: t })).catch(() => sendResponse(null));
      return true;
    }
  });
  let baseline;
  setInterval(() => {
    current()
      .then((t) => {
        if (baseline === undefined) {
          baseline = t;
        } else if (t !== baseline) {
          chrome.runtime.reload();
        }
      })
      .catch(() => {});
  }, 1000);
})();`

const pollContentClient = `// extkit dev reload client (content, poll)
(() => {
  let baseline;
  setInterval(() => {
    chrome.runtime.sendMessage({ type: "__EXTKIT_TIMESTAMP_QUERY__" }, (reply) => {
      if (chrome.runtime.lastError || !reply) return;
      if (baseline === undefined) {
        baseline = reply.timestamp;
      } else if (reply.timestamp !== baseline) {
        location.reload();
      }
    });
  }, 3000);
})();`

const pollPageClient = `// extkit dev reload client (page, poll)
(() => {
  const url = chrome.runtime.getURL("manifest.json");
  let baseline;
  setInterval(() => {
    fetch(url)
      .then((r) => r.json())
      .then((m) => {
        const t = m["__EXTKIT_TIMESTAMP_KEY__"];
        if (baseline === undefined) {
          baseline = t;
        } else if (t !== baseline) {
          location.reload();
        }
      })
      .catch(() => {});
  }, 3000);
})();`
