// Package remarkable transfers finished documents to a reMarkable tablet
// over SSH and restarts its UI so they show up.
package remarkable

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	appLog "dayplan/internal/log"
)

// ErrUnreachable is returned when no configured host accepts connections.
var ErrUnreachable = errors.New("remarkable: no reachable host")

const (
	defaultPort    = 22
	defaultTimeout = 10 * time.Second
	restartCommand = "systemctl restart xochitl"
)

// Config describes how to reach the tablet.
type Config struct {
	// Hosts are tried in order.
	Hosts    []string
	Port     int
	User     string
	Password string
	KeyPath  string
	// KnownHosts, if set, enables host key verification against that file.
	KnownHosts  string
	DocumentDir string
	RestartUI   bool
	Timeout     time.Duration
}

// Document is a finished PDF plus what the tablet shows for it.
type Document struct {
	VisibleName string
	PDF         []byte
	PageCount   int
	Modified    time.Time
}

// Uploader pushes documents to the first reachable host.
type Uploader struct {
	cfg   Config
	newID func() string
}

// New returns an Uploader for cfg.
func New(cfg Config) *Uploader {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Uploader{cfg: cfg, newID: uuid.NewString}
}

// Reachable probes each host's SSH port in order and returns the first
// one that accepts a TCP connection.
func (u *Uploader) Reachable(ctx context.Context) (string, error) {
	for _, host := range u.cfg.Hosts {
		if err := u.probe(ctx, host); err != nil {
			appLog.Warn("device not reachable", "host", host, "err", err)
			continue
		}
		appLog.Info("device reachable", "host", host)
		return host, nil
	}
	return "", fmt.Errorf("%w (tried %s)", ErrUnreachable, strings.Join(u.cfg.Hosts, ", "))
}

func (u *Uploader) probe(ctx context.Context, host string) error {
	d := net.Dialer{Timeout: u.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", u.addr(host))
	if err != nil {
		return err
	}
	return conn.Close()
}

func (u *Uploader) addr(host string) string {
	return net.JoinHostPort(host, strconv.Itoa(u.cfg.Port))
}

// Upload writes doc as <id>.pdf, <id>.metadata and <id>.content into the
// document directory and, when configured, restarts the UI. Hosts are
// tried in order; the first full success wins. It returns the new
// document id.
func (u *Uploader) Upload(ctx context.Context, doc Document) (string, error) {
	if len(doc.PDF) == 0 {
		return "", errors.New("remarkable: empty pdf")
	}
	clientCfg, err := u.clientConfig()
	if err != nil {
		return "", err
	}

	id := u.newID()
	files, err := documentFiles(id, doc)
	if err != nil {
		return "", err
	}

	var errs []error
	for _, host := range u.cfg.Hosts {
		if err := u.probe(ctx, host); err != nil {
			appLog.Warn("device not reachable", "host", host, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", host, err))
			continue
		}
		if err := u.uploadTo(ctx, host, clientCfg, files); err != nil {
			appLog.Error("upload failed", err, "host", host)
			errs = append(errs, fmt.Errorf("%s: %w", host, err))
			continue
		}
		appLog.Info("document uploaded", "host", host, "id", id, "name", doc.VisibleName, "pages", doc.PageCount)
		return id, nil
	}

	if len(errs) == 0 {
		return "", ErrUnreachable
	}
	return "", fmt.Errorf("%w: %w", ErrUnreachable, errors.Join(errs...))
}

type file struct {
	name string
	data []byte
}

func documentFiles(id string, doc Document) ([]file, error) {
	meta, err := metadataJSON(doc)
	if err != nil {
		return nil, err
	}
	content, err := contentJSON(doc.PageCount)
	if err != nil {
		return nil, err
	}
	return []file{
		{name: id + ".pdf", data: doc.PDF},
		{name: id + ".metadata", data: meta},
		{name: id + ".content", data: content},
	}, nil
}

func (u *Uploader) uploadTo(ctx context.Context, host string, cfg *ssh.ClientConfig, files []file) error {
	client, err := dial(ctx, u.addr(host), cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	for _, f := range files {
		dst := path.Join(u.cfg.DocumentDir, f.name)
		if err := writeRemote(client, dst, f.data); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	if u.cfg.RestartUI {
		if err := run(client, restartCommand, nil); err != nil {
			return fmt.Errorf("restart ui: %w", err)
		}
	}
	return nil
}

func dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// writeRemote streams data into a temp file next to dst and renames it, so
// the UI never indexes a half-written document.
func writeRemote(client *ssh.Client, dst string, data []byte) error {
	tmp := dst + ".part"
	cmd := fmt.Sprintf("cat > %s && mv %s %s", shellQuote(tmp), shellQuote(tmp), shellQuote(dst))
	return run(client, cmd, data)
}

func run(client *ssh.Client, cmd string, stdin []byte) error {
	session, err := client.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	if stdin != nil {
		session.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	session.Stderr = &stderr

	if err := session.Run(cmd); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func (u *Uploader) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if u.cfg.KeyPath != "" {
		key, err := os.ReadFile(u.cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("remarkable: read key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("remarkable: parse key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if u.cfg.Password != "" {
		auth = append(auth, ssh.Password(u.cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("remarkable: no key or password configured")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if u.cfg.KnownHosts != "" {
		cb, err := knownhosts.New(u.cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("remarkable: known hosts: %w", err)
		}
		hostKey = cb
	} else {
		appLog.Warn("host key verification disabled; set device.known_hosts to enable it")
	}

	return &ssh.ClientConfig{
		User:            u.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         u.cfg.Timeout,
	}, nil
}

// shellQuote wraps s in single quotes for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
