// Package updater implements the remote update listener: a single-connection
// file-upload endpoint served over raw TCP while the controller is paused.
// The protocol is a deliberately minimal HTTP subset (one request per
// connection, hand-written status lines) so it stays implementable on the
// smallest link.
package updater

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Server accepts one upload connection at a time, authenticated by a shared
// bearer token. It shuts itself down after IdleTimeout without activity.
type Server struct {
	// Token is the shared secret required in the Authorization header.
	Token string

	// Dir is the base directory uploaded files are written under.
	Dir string

	// IdleTimeout shuts the listener down after this much inactivity.
	IdleTimeout time.Duration

	// AcceptTimeout bounds a single accept so the idle timer and the stop
	// flag are checked cooperatively. Defaults to 5s.
	AcceptTimeout time.Duration

	// ReadTimeout bounds a single client exchange. Defaults to 10s.
	ReadTimeout time.Duration

	stopped atomic.Bool
}

// ListenAndServe listens on addr and serves uploads until the idle timeout
// elapses or Stop is called.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer ln.Close()
	return s.Serve(ln)
}

// Serve accepts connections on the given listener. Useful for tests.
// The listener must support accept deadlines (TCP listeners do); the
// deadline is what lets the loop check the idle timer and the stop flag.
func (s *Server) Serve(ln net.Listener) error {
	acceptTimeout := s.AcceptTimeout
	if acceptTimeout <= 0 {
		acceptTimeout = 5 * time.Second
	}

	dl, hasDeadline := ln.(interface{ SetDeadline(time.Time) error })

	log.Printf("updater: listening on %s (idle timeout %v)", ln.Addr(), s.IdleTimeout)
	lastActivity := time.Now()

	for !s.stopped.Load() {
		if s.IdleTimeout > 0 && time.Since(lastActivity) > s.IdleTimeout {
			log.Printf("updater: idle timeout reached, shutting down")
			return nil
		}

		if hasDeadline {
			dl.SetDeadline(time.Now().Add(acceptTimeout))
		}
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if s.stopped.Load() {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		lastActivity = time.Now()
		log.Printf("updater: connection from %s", conn.RemoteAddr())
		s.handleClient(conn)
		conn.Close()
	}

	return nil
}

// Stop requests the accept loop to exit. Safe to call from any goroutine;
// observed within one accept timeout.
func (s *Server) Stop() {
	s.stopped.Store(true)
}

// handleClient serves a single upload exchange. Every validation failure
// short-circuits to an error response; unexpected failures answer 500 if
// the socket is still writable. Errors never reach the accept loop.
func (s *Server) handleClient(conn net.Conn) {
	readTimeout := s.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	conn.SetDeadline(time.Now().Add(readTimeout))

	br := bufio.NewReader(conn)

	requestLine, err := readLine(br)
	if err != nil {
		log.Printf("updater: read request line: %v", err)
		return
	}
	log.Printf("updater: request: %s", requestLine)

	if !strings.HasPrefix(requestLine, "POST /upload") {
		respond(conn, 405, "Method Not Allowed", "Only POST /upload is supported")
		return
	}

	headers, err := readHeaders(br)
	if err != nil {
		respond(conn, 500, "Internal Server Error", err.Error())
		return
	}

	auth := headers["authorization"]
	if !strings.HasPrefix(auth, "Bearer ") {
		respond(conn, 401, "Unauthorized", "Missing or invalid authorization")
		return
	}
	if auth[len("Bearer "):] != s.Token {
		respond(conn, 403, "Forbidden", "Invalid token")
		return
	}

	filePath := headers["x-file-path"]
	if filePath == "" {
		respond(conn, 400, "Bad Request", "Missing X-File-Path header")
		return
	}

	contentLength, _ := strconv.Atoi(headers["content-length"])
	if contentLength <= 0 {
		respond(conn, 400, "Bad Request", "Missing or zero Content-Length")
		return
	}

	if err := validatePath(filePath); err != nil {
		respond(conn, 400, "Bad Request", err.Error())
		return
	}

	content, err := readBody(br, contentLength)
	if err != nil {
		respond(conn, 400, "Bad Request", err.Error())
		return
	}

	if err := s.writeFile(filePath, content); err != nil {
		respond(conn, 500, "Internal Server Error", err.Error())
		return
	}

	respond(conn, 200, "OK", "File uploaded: "+filePath)
	log.Printf("updater: uploaded %s (%d bytes)", filePath, contentLength)
}

// readLine reads one CRLF-terminated line.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readHeaders reads header lines until the blank separator. Keys are
// lowercased; malformed lines without a colon are skipped.
func readHeaders(br *bufio.Reader) (map[string]string, error) {
	headers := make(map[string]string)
	for {
		line, err := readLine(br)
		if err != nil {
			return nil, fmt.Errorf("read headers: %w", err)
		}
		if line == "" {
			return headers, nil
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
}

// readBody reads exactly length bytes in bounded chunks. A stream that
// closes early is a length mismatch.
func readBody(br *bufio.Reader, length int) ([]byte, error) {
	content := make([]byte, 0, length)
	chunk := make([]byte, 1024)
	remaining := length
	for remaining > 0 {
		n := len(chunk)
		if remaining < n {
			n = remaining
		}
		read, err := br.Read(chunk[:n])
		if read > 0 {
			content = append(content, chunk[:read]...)
			remaining -= read
		}
		if err != nil {
			break
		}
	}
	if len(content) != length {
		return nil, fmt.Errorf("content length mismatch: expected %d, got %d", length, len(content))
	}
	return content, nil
}

// validatePath rejects absolute paths and parent-directory segments.
func validatePath(p string) error {
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("invalid file path: %s", p)
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return fmt.Errorf("invalid file path: %s", p)
		}
	}
	return nil
}

// writeFile writes content under Dir, creating intermediate directories.
// An already-existing directory is not an error.
func (s *Server) writeFile(relPath string, content []byte) error {
	full := filepath.Join(s.Dir, filepath.FromSlash(relPath))
	if dir := filepath.Dir(full); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directories: %w", err)
		}
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// respond writes a minimal HTTP response and ignores write failures beyond
// logging; the connection is closed by the caller either way.
func respond(w io.Writer, code int, statusText, body string) {
	resp := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Type: text/plain\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		code, statusText, len(body), body)
	if _, err := io.WriteString(w, resp); err != nil {
		log.Printf("updater: write response: %v", err)
	}
}
