package build

import (
	"bytes"
	"strconv"
)

// reloadClient reconnects one second after the socket closes and reloads
// the page on any message.
const reloadClient = `
(() => {
  const url = RELOAD_URL;
  function connect() {
    const ws = new WebSocket(url);
    ws.addEventListener("message", () => location.reload());
    ws.addEventListener("close", () => setTimeout(connect, 1000));
  }
  connect();
})();
`

// ReloadClient returns the live-reload snippet connecting to url.
func ReloadClient(url string) string {
	return string(bytes.Replace([]byte(reloadClient), []byte("RELOAD_URL"), []byte(strconv.Quote(url)), 1))
}

// AppendReloadClient returns script with the reload snippet appended.
func AppendReloadClient(script []byte, url string) []byte {
	snippet := ReloadClient(url)
	out := make([]byte, 0, len(script)+1+len(snippet))
	out = append(out, script...)
	out = append(out, '\n')
	return append(out, snippet...)
}
