package proxy

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkupdev/linkup-go/internal/headers"
	"github.com/linkupdev/linkup-go/internal/pkg/response"
)

// wsCloseInternalError is the WebSocket close status code for "unexpected
// condition", used when the proxy itself fails mid-splice rather than
// either endpoint closing cleanly.
const wsCloseInternalError = 1011

// forwardWebSocket implements §4.7's WebSocket contract: issue the upgrade
// request upstream with forwarded and injected headers; require a 101
// response; then splice the two byte streams bidirectionally until either
// side closes. The proxy never parses WebSocket frames themselves, so any
// upgrade-based protocol passes through unmodified.
func (a *App) forwardWebSocket(c *gin.Context, targetURL *url.URL, injected *headers.Map) {
	req := c.Request

	hijacker, ok := c.Writer.(http.Hijacker)
	if !ok {
		response.InternalError(c, fmt.Errorf("websocket: response writer does not support hijacking"))
		return
	}

	clientConn, clientBuf, err := hijacker.Hijack()
	if err != nil {
		response.InternalError(c, fmt.Errorf("websocket: hijack failed: %w", err))
		return
	}
	defer clientConn.Close()

	upstreamConn, err := dialUpstream(targetURL)
	if err != nil {
		writeRawStatus(clientConn, http.StatusBadGateway)
		return
	}
	defer upstreamConn.Close()

	upstreamReq := req.Clone(req.Context())
	upstreamReq.URL = targetURL
	upstreamReq.Host = targetURL.Host
	upstreamReq.Header = cloneHeader(req.Header)
	upstreamReq.Header.Del("Host")
	applyInjectedHeaders(upstreamReq.Header, injected)
	upstreamReq.RequestURI = ""

	if err := upstreamReq.Write(upstreamConn); err != nil {
		writeRawStatus(clientConn, http.StatusBadGateway)
		return
	}

	upstreamReader := bufio.NewReader(upstreamConn)
	status, statusText, respHeader, err := readHandshakeResponse(upstreamReader)
	if err != nil {
		writeRawStatus(clientConn, http.StatusBadGateway)
		return
	}

	if status != http.StatusSwitchingProtocols {
		a.logger.Warn("websocket upgrade rejected", zap.Int("status", status), zap.String("status_text", statusText))
		writeRawStatus(clientConn, http.StatusBadGateway)
		return
	}

	if err := writeHandshakeResponse(clientConn, status, statusText, respHeader); err != nil {
		return
	}

	splice(clientConn, clientBuf.Reader, upstreamConn, upstreamReader)
}

func dialUpstream(target *url.URL) (net.Conn, error) {
	host := target.Host
	if !strings.Contains(host, ":") {
		if target.Scheme == "https" || target.Scheme == "wss" {
			host += ":443"
		} else {
			host += ":80"
		}
	}
	return net.Dial("tcp", host)
}

func readHandshakeResponse(r *bufio.Reader) (int, string, http.Header, error) {
	tp := textproto.NewReader(r)

	statusLine, err := tp.ReadLine()
	if err != nil {
		return 0, "", nil, err
	}

	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return 0, "", nil, fmt.Errorf("malformed status line: %q", statusLine)
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, "", nil, fmt.Errorf("malformed status code: %q", parts[1])
	}
	statusText := ""
	if len(parts) == 3 {
		statusText = parts[2]
	}

	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return 0, "", nil, err
	}

	return status, statusText, http.Header(mimeHeader), nil
}

func writeHandshakeResponse(w io.Writer, status int, statusText string, header http.Header) error {
	if statusText == "" {
		statusText = http.StatusText(status)
	}
	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", status, statusText); err != nil {
		return err
	}
	if err := header.Write(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

func writeRawStatus(w io.Writer, status int) {
	_, _ = fmt.Fprintf(w, "HTTP/1.1 %d %s\r\nContent-Length: 0\r\nConnection: close\r\n\r\n", status, http.StatusText(status))
}

// splice copies bytes bidirectionally between the client and upstream
// connections until either side closes. As soon as either direction ends —
// cleanly or not — both connections are closed so the other direction's
// blocked read unblocks instead of leaking; a non-EOF I/O error additionally
// gets a best-effort 1011 close frame toward both sides before the close.
func splice(clientConn net.Conn, clientReader io.Reader, upstreamConn net.Conn, upstreamReader io.Reader) {
	done := make(chan error, 2)

	go func() {
		_, err := io.Copy(upstreamConn, clientReader)
		done <- err
	}()
	go func() {
		_, err := io.Copy(clientConn, upstreamReader)
		done <- err
	}()

	first := <-done
	if first != nil && first != io.EOF {
		writeCloseFrame(clientConn)
		writeCloseFrame(upstreamConn)
	}
	_ = clientConn.Close()
	_ = upstreamConn.Close()
	<-done
}

// writeCloseFrame best-effort writes an unmasked WebSocket close frame with
// code 1011 ("internal error") and a short text reason. Failures are
// ignored: the connection is being torn down regardless.
func writeCloseFrame(w io.Writer) {
	reason := []byte("internal error")
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, wsCloseInternalError)
	copy(payload[2:], reason)

	frame := []byte{0x88, byte(len(payload))}
	frame = append(frame, payload...)
	_, _ = w.Write(frame)
}
