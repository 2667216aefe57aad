package node

import (
	"errors"
	"net"

	"github.com/gochain/gochain/pkg/chainerr"
	"github.com/gochain/gochain/pkg/netwire"
)

// handleConnection runs the per-connection message loop, dispatching each
// framed message per the table in spec.md §4.7. A transport error or
// decode error terminates this goroutine only; the node keeps running.
func (n *Node) handleConnection(conn net.Conn) {
	addr := conn.RemoteAddr().String()
	defer n.Peers.Remove(addr)

	for {
		msg, err := netwire.Receive(conn)
		if err != nil {
			n.Log.Debug("peer %s: read failed, closing: %v", addr, err)
			return
		}

		if msg.IsReplyOnly() {
			n.Log.Debug("peer %s sent unsolicited reply variant %s, closing", addr, msg.Kind)
			return
		}

		if err := n.dispatch(conn, addr, msg); err != nil {
			if errors.Is(err, errCloseConnection) {
				return
			}
			n.Log.Warn("peer %s: handling %s: %v", addr, msg.Kind, err)
		}
	}
}

var errCloseConnection = errors.New("node: close connection")

// dispatch handles one message per spec.md §4.7's table.
func (n *Node) dispatch(conn net.Conn, addr string, msg netwire.Message) error {
	switch msg.Kind {
	case netwire.KindFetchBlock:
		block, ok := n.Chain.BlockAt(msg.BlockIndex)
		if !ok {
			return errCloseConnection
		}
		return wrapClose(netwire.Send(conn, netwire.MsgNewBlock(block)))

	case netwire.KindDiscoverNodes:
		return wrapClose(netwire.Send(conn, netwire.MsgNodeList(n.Peers.Addresses())))

	case netwire.KindAskDifference:
		diff := int32(n.Chain.Height()) - int32(msg.Height)
		return wrapClose(netwire.Send(conn, netwire.MsgDifference(diff)))

	case netwire.KindFetchUTXOs:
		entries := n.Chain.UTXOsForKey(msg.PublicKey)
		wire := make([]netwire.UTXOWire, len(entries))
		for i, e := range entries {
			wire[i] = netwire.UTXOWire{Output: e.Output, Marked: e.Marked}
		}
		return wrapClose(netwire.Send(conn, netwire.MsgUTXOs(wire)))

	case netwire.KindNewBlock:
		if err := n.Chain.AddBlock(msg.Block); err != nil {
			n.Log.Warn("peer %s: rejected NewBlock: %v", addr, err)
		}
		return nil

	case netwire.KindNewTransaction:
		if err := n.Chain.AddToMempool(msg.Transaction); err != nil {
			n.Log.Warn("peer %s: rejected NewTransaction: %v", addr, err)
		}
		return nil

	case netwire.KindValidateTemplate:
		valid, err := n.Chain.ValidateTemplate(msg.Block)
		if err != nil {
			return err
		}
		return wrapClose(netwire.Send(conn, netwire.MsgTemplateValidity(valid)))

	case netwire.KindSubmitTemplate:
		if err := n.Chain.AddBlock(msg.Block); err != nil {
			n.Log.Warn("peer %s: rejected SubmitTemplate: %v", addr, err)
			return nil
		}
		if err := n.Chain.RebuildUTXOs(); err != nil {
			n.Log.Error("rebuilding utxos after submitted template: %v", err)
			return nil
		}
		n.Peers.Broadcast(netwire.MsgNewBlock(msg.Block))
		return nil

	case netwire.KindSubmitTransaction:
		if err := n.Chain.AddToMempool(msg.Transaction); err != nil {
			n.Log.Warn("peer %s: rejected SubmitTransaction, closing: %v", addr, err)
			return errCloseConnection
		}
		n.Peers.Broadcast(netwire.MsgNewTransaction(msg.Transaction))
		return nil

	case netwire.KindFetchTemplate:
		block, err := n.Chain.BuildTemplate(msg.PublicKey)
		if err != nil {
			return err
		}
		return wrapClose(netwire.Send(conn, netwire.MsgTemplate(block)))

	default:
		return chainerr.ErrUnsolicitedReply
	}
}

// wrapClose closes the connection on a send failure by returning
// errCloseConnection, since the peer is presumed gone.
func wrapClose(err error) error {
	if err != nil {
		return errCloseConnection
	}
	return nil
}
