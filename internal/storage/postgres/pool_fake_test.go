package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

// fakePool leases a single pgxmock connection and counts releases.
type fakePool struct {
	conn       pgxmock.PgxConnIface
	acquireErr error
	acquired   int
	released   int
}

func newFakePool(t *testing.T) *fakePool {
	t.Helper()
	conn, err := pgxmock.NewConn()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })
	return &fakePool{conn: conn}
}

func (p *fakePool) Acquire(context.Context) (Conn, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.acquired++
	return &leasedConn{PgxConnIface: p.conn, pool: p}, nil
}

func (p *fakePool) Close() {}

type leasedConn struct {
	pgxmock.PgxConnIface
	pool *fakePool
}

func (c *leasedConn) Release() {
	c.pool.released++
}

// requireBalanced asserts every lease was given back and all SQL ran.
func (p *fakePool) requireBalanced(t *testing.T) {
	t.Helper()
	require.Equal(t, p.acquired, p.released, "leaked connection")
	require.NoError(t, p.conn.ExpectationsWereMet())
}
