package smb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hirochachacha/go-smb2"
)

// ErrUnavailable wraps every failure to reach the remote share. Read paths
// treat it as "no data", write paths fail the operation.
var ErrUnavailable = errors.New("smb share unavailable")

// Share is the remote file store the admin instances share. The real
// implementation talks SMB2; tests substitute an in-memory map.
type Share interface {
	Retrieve(ctx context.Context, name string) ([]byte, error)
	Store(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
}

// Client dials the share once per operation. The network to the share is
// flaky and permission-restricted; a cached session goes stale faster than
// it pays for itself, so every call gets a fresh one.
type Client struct {
	Addr      string // host or host:port
	ShareName string
	Domain    string
	User      string
	Password  string

	DialTimeout time.Duration
}

func FromEnv() *Client {
	c := &Client{
		Addr:        os.Getenv("SMB_ADDR"),
		ShareName:   os.Getenv("SMB_SHARE"),
		Domain:      os.Getenv("SMB_DOMAIN"),
		User:        os.Getenv("SMB_USER"),
		Password:    os.Getenv("SMB_PASS"),
		DialTimeout: 5 * time.Second,
	}
	if !strings.Contains(c.Addr, ":") {
		c.Addr += ":445"
	}
	return c
}

func (c *Client) withShare(ctx context.Context, fn func(fs *smb2.Share) error) error {
	conn, err := net.DialTimeout("tcp", c.Addr, c.DialTimeout)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrUnavailable, c.Addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     c.User,
			Password: c.Password,
			Domain:   c.Domain,
		},
	}
	session, err := d.Dial(conn)
	if err != nil {
		return fmt.Errorf("%w: session %s: %v", ErrUnavailable, c.Addr, err)
	}
	defer session.Logoff()

	fs, err := session.Mount(c.ShareName)
	if err != nil {
		return fmt.Errorf("%w: mount %s: %v", ErrUnavailable, c.ShareName, err)
	}
	defer fs.Umount()

	return fn(fs)
}

func (c *Client) Retrieve(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := c.withShare(ctx, func(fs *smb2.Share) error {
		b, err := fs.ReadFile(name)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) Store(ctx context.Context, name string, data []byte) error {
	return c.withShare(ctx, func(fs *smb2.Share) error {
		return fs.WriteFile(name, data, 0644)
	})
}

func (c *Client) Delete(ctx context.Context, name string) error {
	return c.withShare(ctx, func(fs *smb2.Share) error {
		return fs.Remove(name)
	})
}

func (c *Client) List(ctx context.Context) ([]string, error) {
	var names []string
	err := c.withShare(ctx, func(fs *smb2.Share) error {
		infos, err := fs.ReadDir(".")
		if err != nil {
			return err
		}
		for _, info := range infos {
			if !info.IsDir() {
				names = append(names, info.Name())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// IsNotExist reports whether an error means the remote file is absent.
// go-smb2 surfaces NT status codes through os-style path errors, so this
// stays deliberately loose.
func IsNotExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsNotExist(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "object_name_not_found")
}
