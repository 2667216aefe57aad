package node

import (
	"fmt"
	"net"

	"github.com/gochain/gochain/pkg/netwire"
)

// Bootstrap connects to seeds and establishes the node's initial chain
// state, per spec.md §4.8: discover each seed's known peers and connect to
// them too, then either load the on-disk snapshot or sync the full chain
// from the seed with the greatest height difference. With no seeds and no
// snapshot, the node starts as genesis.
func (n *Node) Bootstrap(seeds []string) error {
	for _, seed := range seeds {
		if err := n.connectToSeed(seed); err != nil {
			n.Log.Warn("bootstrap: connecting to seed %s: %v", seed, err)
		}
	}

	if n.Storage != nil && n.Storage.HasSnapshot() {
		data, err := n.Storage.LoadSnapshot()
		if err != nil {
			return fmt.Errorf("node: loading snapshot: %w", err)
		}
		if err := n.Chain.LoadSnapshot(data); err != nil {
			return fmt.Errorf("node: applying snapshot: %w", err)
		}
		if err := n.Chain.RebuildUTXOs(); err != nil {
			return fmt.Errorf("node: rebuilding utxos from snapshot: %w", err)
		}
		n.Chain.TryAdjustTarget()
		return nil
	}

	if len(seeds) == 0 {
		n.Log.Info("no seeds and no snapshot: starting as genesis")
		return nil
	}

	return n.syncFromBestPeer(seeds)
}

// connectToSeed dials seed, exchanges DiscoverNodes/NodeList, and connects
// to every peer the seed reports, plus the seed itself.
func (n *Node) connectToSeed(seed string) error {
	conn, err := net.Dial("tcp", seed)
	if err != nil {
		return fmt.Errorf("dialing: %w", err)
	}
	if err := netwire.Send(conn, netwire.MsgDiscoverNodes()); err != nil {
		conn.Close()
		return fmt.Errorf("sending DiscoverNodes: %w", err)
	}
	reply, err := netwire.Receive(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("receiving NodeList: %w", err)
	}
	if reply.Kind != netwire.KindNodeList {
		conn.Close()
		return fmt.Errorf("expected NodeList, got %s", reply.Kind)
	}

	for _, peerAddr := range reply.NodeNames {
		peerConn, err := net.Dial("tcp", peerAddr)
		if err != nil {
			n.Log.Warn("bootstrap: connecting to discovered peer %s: %v", peerAddr, err)
			continue
		}
		n.Peers.Add(peerAddr, peerConn)
		go n.handleConnection(peerConn)
	}

	n.Peers.Add(seed, conn)
	go n.handleConnection(conn)
	return nil
}

// syncFromBestPeer probes every seed with AskDifference(0) to find the one
// reporting the greatest height, then replays its entire chain block by
// block.
func (n *Node) syncFromBestPeer(seeds []string) error {
	var bestSeed string
	var bestDiff int32 = -1
	for _, seed := range seeds {
		diff, err := n.askDifference(seed, 0)
		if err != nil {
			n.Log.Warn("bootstrap: asking difference from %s: %v", seed, err)
			continue
		}
		if diff > bestDiff {
			bestDiff = diff
			bestSeed = seed
		}
	}
	if bestSeed == "" || bestDiff <= 0 {
		n.Log.Info("no peer reported a longer chain: starting as genesis")
		return nil
	}

	for h := uint64(0); h < uint64(bestDiff); h++ {
		msg, err := n.fetchBlock(bestSeed, h)
		if err != nil {
			return fmt.Errorf("node: fetching block %d from %s: %w", h, bestSeed, err)
		}
		if err := n.Chain.AddBlock(msg.Block); err != nil {
			return fmt.Errorf("node: adding fetched block %d: %w", h, err)
		}
	}
	if err := n.Chain.RebuildUTXOs(); err != nil {
		return fmt.Errorf("node: rebuilding utxos after initial sync: %w", err)
	}
	n.Chain.TryAdjustTarget()
	return nil
}

// askDifference opens a short-lived connection to addr and asks how far
// ahead its chain is relative to height.
func (n *Node) askDifference(addr string, height uint32) (int32, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	if err := netwire.Send(conn, netwire.MsgAskDifference(height)); err != nil {
		return 0, err
	}
	reply, err := netwire.Receive(conn)
	if err != nil {
		return 0, err
	}
	if reply.Kind != netwire.KindDifference {
		return 0, fmt.Errorf("expected Difference, got %s", reply.Kind)
	}
	return reply.Difference, nil
}

// fetchBlock opens a short-lived connection to addr and fetches the block
// at the given height.
func (n *Node) fetchBlock(addr string, height uint64) (netwire.Message, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return netwire.Message{}, err
	}
	defer conn.Close()
	if err := netwire.Send(conn, netwire.MsgFetchBlock(height)); err != nil {
		return netwire.Message{}, err
	}
	reply, err := netwire.Receive(conn)
	if err != nil {
		return netwire.Message{}, err
	}
	if reply.Kind != netwire.KindNewBlock {
		return netwire.Message{}, fmt.Errorf("expected NewBlock, got %s", reply.Kind)
	}
	return reply, nil
}
