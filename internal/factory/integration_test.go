package factory

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/skirmish-gg/skirmish/internal/model"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
	s.Require().NoError(s.app.Server.Start(s.ctx))
}

func (s *IntegrationSuite) TearDownTest() {
	s.app.Server.Shutdown()
}

func (s *IntegrationSuite) dial() net.Conn {
	nc, err := net.Dial("tcp", s.app.Server.Addr().String())
	s.Require().NoError(err)
	s.T().Cleanup(func() { nc.Close() })
	return nc
}

func (s *IntegrationSuite) send(nc net.Conn, line string) {
	_, err := nc.Write([]byte(line + "\n"))
	s.Require().NoError(err)
}

// read collects one burst of server output.
func (s *IntegrationSuite) read(nc net.Conn) string {
	nc.SetReadDeadline(time.Now().Add(time.Second))
	b := make([]byte, 1024)
	n, err := nc.Read(b)
	s.Require().NoError(err)
	return string(b[:n])
}

// Test: register flows through the wired server into storage
func (s *IntegrationSuite) TestRegisterPersistsCredential() {
	nc := s.dial()
	s.send(nc, "1:2:alice/secret")
	token := strings.TrimSpace(s.read(nc))
	s.NotContains(token, "Failed to")
	s.NotEmpty(token)

	cred, err := s.app.Storage.FindByName(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(100, cred.Rating)
	s.NotEqual("secret", cred.PasswordCredential)
}

// Test: a registered token reconnects a fresh socket to the same session
func (s *IntegrationSuite) TestTokenReconnectAcrossSockets() {
	nc := s.dial()
	s.send(nc, "1:2:alice/secret")
	token := strings.TrimSpace(s.read(nc))
	nc.Close()

	again := s.dial()
	s.send(again, token)
	s.Equal(model.MsgReconnected, s.read(again))

	sess, ok := s.app.Server.Registry().ByName("alice")
	s.Require().True(ok)
	s.True(sess.Connected())
}

// Test: quit removes the session entirely
func (s *IntegrationSuite) TestQuitTerminates() {
	nc := s.dial()
	s.send(nc, "1:2:alice/secret")
	s.read(nc)
	s.send(nc, "3")

	s.Require().Eventually(func() bool {
		_, ok := s.app.Server.Registry().ByName("alice")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

// Test: the file backend wires through New end to end
func (s *IntegrationSuite) TestFileBackedApp() {
	path := filepath.Join(s.T().TempDir(), "users.csv")
	app, err := New(Config{
		ListenAddr:  "127.0.0.1:0",
		StorageType: StorageTypeFile,
		FilePath:    path,
	})
	s.Require().NoError(err)

	s.Require().NoError(app.Storage.Insert(s.ctx, &model.Credential{
		Name:               "bob",
		PasswordCredential: "1:salt:key",
		Rating:             100,
	}))
	cred, err := app.Storage.FindByName(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(100, cred.Rating)
}

// Test: invalid storage type is rejected up front
func (s *IntegrationSuite) TestInvalidStorageType() {
	_, err := New(Config{ListenAddr: ":0", StorageType: "cassandra"})
	s.Error(err)
}
