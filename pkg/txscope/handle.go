package txscope

// Handle is a connection loaned for one unit of database work. Always Close
// it when the work is done; Close only releases what the handle owns.
type Handle struct {
	conn  Conn
	tx    Tx
	owned bool
}

// Conn returns the connection to run statements on.
func (h *Handle) Conn() Conn {
	return h.conn
}

// Tx returns the shared transaction, or nil for a private connection.
func (h *Handle) Tx() Tx {
	return h.tx
}

// Participating reports whether the handle is part of the manager transaction.
func (h *Handle) Participating() bool {
	return !h.owned
}

// Close releases a private connection. It is a no-op for participating
// handles, whose connection belongs to the manager, and for handles already closed.
func (h *Handle) Close() error {
	if !h.owned || h.conn == nil {
		return nil
	}
	conn := h.conn
	h.conn, h.tx = nil, nil
	return conn.Close()
}
