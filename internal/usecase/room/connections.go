package usecase_room

// Close codes sent to live connections. They are distinct so a client can
// tell "log in again" from "another tab took over".
const (
	CloseInvalidSession = 4001
	CloseSuperseded     = 4002

	closeGoingAway = 1001
)

// Connection is one live socket. Send must not block; a full or closed
// connection returns an error and is dropped.
type Connection interface {
	Send(data []byte) error
	Close(code int, reason string)
}

// connections is owned by one room actor and never shared.
type connections struct {
	byConn map[Connection]string
	byUser map[string]Connection
}

func newConnections() *connections {
	return &connections{
		byConn: make(map[Connection]string),
		byUser: make(map[string]Connection),
	}
}

// register binds conn to user and returns the connection it supersedes.
func (c *connections) register(conn Connection, user string) Connection {
	old := c.byUser[user]
	if old != nil {
		delete(c.byConn, old)
	}
	c.byConn[conn] = user
	c.byUser[user] = conn
	return old
}

func (c *connections) deregister(conn Connection) (string, bool) {
	user, ok := c.byConn[conn]
	if !ok {
		return "", false
	}
	delete(c.byConn, conn)
	if c.byUser[user] == conn {
		delete(c.byUser, user)
	}
	return user, true
}

func (c *connections) user(conn Connection) (string, bool) {
	user, ok := c.byConn[conn]
	return user, ok
}

func (c *connections) has(user string) bool {
	_, ok := c.byUser[user]
	return ok
}

func (c *connections) len() int {
	return len(c.byConn)
}

// broadcast sends data to every connection and returns those that failed.
func (c *connections) broadcast(data []byte) []Connection {
	var failed []Connection
	for conn := range c.byConn {
		if err := conn.Send(data); err != nil {
			failed = append(failed, conn)
		}
	}
	return failed
}
