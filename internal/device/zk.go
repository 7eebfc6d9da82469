package device

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"attstream/internal/model"
)

// ZKDialer opens realtime-capture sessions against ZK-style terminals over
// TCP. It performs the connect/auth handshake and subscribes to attendance
// events before handing the session to the caller.
type ZKDialer struct {
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

var _ Dialer = (*ZKDialer)(nil)

func (zd *ZKDialer) Dial(ctx context.Context, d model.Device) (Conn, error) {
	dialer := net.Dialer{Timeout: zd.DialTimeout}
	addr := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c := &zkConn{
		conn:        raw,
		readTimeout: zd.ReadTimeout,
	}
	if err := c.handshake(ctx, d.CommKey); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return c, nil
}

type zkConn struct {
	conn        net.Conn
	readTimeout time.Duration
	session     uint16
	reply       uint16
}

func (c *zkConn) handshake(ctx context.Context, commKey int) error {
	resp, err := c.roundTrip(ctx, packet{command: cmdConnect})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	c.session = resp.session

	if resp.command == cmdAckUnauth {
		resp, err = c.roundTrip(ctx, packet{
			command: cmdAuth,
			session: c.session,
			data:    commKeyDigest(commKey, c.session),
		})
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		if resp.command != cmdAckOK {
			return fmt.Errorf("auth rejected: command %d", resp.command)
		}
	} else if resp.command != cmdAckOK {
		return fmt.Errorf("connect rejected: command %d", resp.command)
	}

	// Subscribe to realtime attendance logs.
	flags := make([]byte, 4)
	binary.LittleEndian.PutUint32(flags, efAttLog)
	resp, err = c.roundTrip(ctx, packet{
		command: cmdRegEvent,
		session: c.session,
		data:    flags,
	})
	if err != nil {
		return fmt.Errorf("register events: %w", err)
	}
	if resp.command != cmdAckOK {
		return fmt.Errorf("register events rejected: command %d", resp.command)
	}
	return nil
}

func (c *zkConn) roundTrip(ctx context.Context, p packet) (packet, error) {
	c.reply++
	p.reply = c.reply

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	} else {
		_ = c.conn.SetDeadline(time.Now().Add(c.readTimeout))
	}
	if _, err := c.conn.Write(encodePacket(p)); err != nil {
		return packet{}, err
	}
	payload, err := readFrame(c.conn)
	if err != nil {
		return packet{}, err
	}
	return decodePayload(payload)
}

// Next blocks until the terminal pushes an attendance event. Idle periods
// are expected and roll the read deadline over; cancelling the context
// expires the pending read right away so a stopping runner never waits out
// the idle timeout. Malformed event payloads are skipped; transport errors
// are returned and end the session.
func (c *zkConn) Next(ctx context.Context) (Event, error) {
	returned := make(chan struct{})
	defer close(returned)
	go func() {
		select {
		case <-ctx.Done():
		case <-returned:
			return
		}
		// Keep the deadline expired until Next observes the cancellation;
		// a single expiry could be overwritten by the loop's rollover.
		for {
			_ = c.conn.SetReadDeadline(time.Now())
			select {
			case <-returned:
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		payload, err := readFrame(c.conn)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return Event{}, err
		}

		p, err := decodePayload(payload)
		if err != nil {
			// Corrupt packet on an otherwise healthy stream: skip it.
			continue
		}
		if p.command != cmdRegEvent {
			continue
		}
		ev, err := decodeAttLog(p.data)
		if err != nil {
			continue
		}
		return ev, nil
	}
}

func (c *zkConn) Close() error {
	// Best effort: tell the terminal we are leaving before dropping TCP.
	_ = c.conn.SetDeadline(time.Now().Add(2 * time.Second))
	_, _ = c.conn.Write(encodePacket(packet{command: cmdExit, session: c.session, reply: c.reply + 1}))
	return c.conn.Close()
}
