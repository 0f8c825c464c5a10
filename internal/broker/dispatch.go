package broker

import (
	"fmt"

	"github.com/tenzoki/ubus/internal/wire"
)

// handleFrame dispatches one decoded frame from connection c to the
// appropriate per-tag handler.
func (s *Service) handleFrame(c *conn, tag wire.Tag, body []byte) error {
	switch tag {
	case wire.TagRegister:
		return s.handleRegister(c, body)
	case wire.TagInvoke:
		return s.handleInvoke(c, body)
	case wire.TagReply:
		return s.handleReply(c, body)
	case wire.TagSubscribe:
		return s.handleSubscribe(c, body)
	case wire.TagPublish:
		return s.handlePublish(c, body)
	default:
		return fmt.Errorf("unknown tag %#x", byte(tag))
	}
}

// handleRegister implements 0x00: register an object. Enforces the global
// single-owner invariant under s.mu so two concurrent registrations for the
// same object name can never both succeed.
func (s *Service) handleRegister(c *conn, body []byte) error {
	var req wire.RegisterBody
	if err := wire.Decode(body, &req); err != nil {
		return err
	}

	s.mu.Lock()
	owned := false
	for _, other := range s.conns {
		if other.ownsObject(req.Object) {
			owned = true
			break
		}
	}
	if !owned {
		c.addObject(req.Object, req.Funcs)
	}
	s.mu.Unlock()

	ret := 0
	if !owned {
		ret = 1
	}
	return s.sendTo(c, wire.TagRegisterAck, wire.RegisterAckBody{ID: req.ID, Ret: ret})
}

// handleInvoke implements 0x01: find object's unique owner and forward the
// call, stamping _cs with the caller's connection handle so the reply can
// be routed back.
func (s *Service) handleInvoke(c *conn, body []byte) error {
	var req wire.InvokeBody
	if err := wire.Decode(body, &req); err != nil {
		return err
	}

	s.mu.Lock()
	var owner *conn
	for _, other := range s.conns {
		if other.ownsObject(req.Object) {
			owner = other
			break
		}
	}
	s.mu.Unlock()

	if owner == nil || !owner.ownsMethod(req.Object, req.Func) {
		return s.sendTo(c, wire.TagInvokeReply, wire.InvokeReplyBody{ID: req.ID, Ret: 0})
	}

	fwd := wire.ForwardBody{
		ID:     req.ID,
		CS:     c.handle,
		Object: req.Object,
		Func:   req.Func,
		Data:   req.Data,
	}
	return s.sendTo(owner, wire.TagForward, fwd)
}

// handleReply implements 0x02: route the owner's reply back to the caller
// connection identified by _cs. A caller that has since disconnected is
// silently dropped.
func (s *Service) handleReply(c *conn, body []byte) error {
	var req wire.ReplyBody
	if err := wire.Decode(body, &req); err != nil {
		return err
	}

	s.mu.Lock()
	caller, ok := s.conns[req.CS]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	return s.sendTo(caller, wire.TagInvokeReply, wire.InvokeReplyBody{ID: req.ID, Ret: 1, Data: req.Data})
}

// handleSubscribe implements 0x03: add event to c's subscription set.
// Subscribing twice is idempotent because subs is a set.
func (s *Service) handleSubscribe(c *conn, body []byte) error {
	var req wire.SubscribeBody
	if err := wire.Decode(body, &req); err != nil {
		return err
	}

	c.subscribe(req.Event)
	return s.sendTo(c, wire.TagSubscribeOK, wire.SubscribeAckBody{ID: req.ID, Ret: 1})
}

// handlePublish implements 0x04: fan out to every connection subscribed to
// event, including the publisher. No reply is sent to the publisher.
func (s *Service) handlePublish(c *conn, body []byte) error {
	var req wire.PublishBody
	if err := wire.Decode(body, &req); err != nil {
		return err
	}

	s.mu.Lock()
	var targets []*conn
	for _, other := range s.conns {
		if other.subscribed(req.Event) {
			targets = append(targets, other)
		}
	}
	s.mu.Unlock()

	evt := wire.EventBody{Event: req.Event, Data: req.Data}
	var firstErr error
	for _, t := range targets {
		if err := s.sendTo(t, wire.TagEvent, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sendTo encodes and writes one frame to connection target.
func (s *Service) sendTo(target *conn, tag wire.Tag, body any) error {
	frame, err := wire.Encode(tag, body)
	if err != nil {
		return err
	}
	return target.write(frame)
}
