/*
Copyright 2025 the Unikorn Authors.
Copyright 2026 Nscale.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package remote runs commands on guests over SSH.  It exists to prove
// end to end connectivity and that the keypair we injected actually
// works, not to be a general purpose shell.
package remote

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// ErrTimeout distinguishes connection deadline failures from
// authentication or command failures, the diagnostics differ.
var ErrTimeout = errors.New("ssh connection timed out")

// Client dials a single guest.
type Client struct {
	host    string
	user    string
	signer  ssh.Signer
	timeout time.Duration
}

// NewClient builds a client from PEM encoded private key material as
// produced by util.GenerateSSHKeyPair.
func NewClient(host, user string, privateKey []byte, timeout time.Duration) (*Client, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	c := &Client{
		host:    host,
		user:    user,
		signer:  signer,
		timeout: timeout,
	}

	return c, nil
}

func (c *Client) dial() (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User: c.user,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(c.signer),
		},
		// Guests are ephemeral, there is no host key to pin.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.timeout,
	}

	client, err := ssh.Dial("tcp", net.JoinHostPort(c.host, "22"), config)
	if err != nil {
		var netErr net.Error

		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, c.host)
		}

		return nil, err
	}

	return client, nil
}

// ValidateAuthentication proves the injected key logs in, nothing more.
func (c *Client) ValidateAuthentication() error {
	client, err := c.dial()
	if err != nil {
		return err
	}

	return client.Close()
}

// RunCommand executes a command and returns its trimmed stdout.
func (c *Client) RunCommand(command string) (string, error) {
	client, err := c.dial()
	if err != nil {
		return "", err
	}

	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", err
	}

	defer session.Close()

	output, err := session.Output(command)
	if err != nil {
		return "", fmt.Errorf("remote command %q: %w", command, err)
	}

	return strings.TrimSpace(string(output)), nil
}

// PingHost pings another address from inside the guest, proving
// east-west connectivity rather than just harness to guest.
func (c *Client) PingHost(address string, count int) error {
	_, err := c.RunCommand(fmt.Sprintf("ping -c %d -W 1 %s", count, address))

	return err
}
