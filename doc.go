// Package peermail implements store-and-forward encrypted mail between
// peers.
//
// Every agent owns an identity (ML-KEM-768, ML-DSA-65 and X25519 keys) and
// an append-only local log. Sending a mail appends an OutboundMail, then
// seals one DeliveryUnit per recipient and delivers it with a direct call.
// The recipient opens and verifies the unit, stores an InboundMail and
// sends an acknowledgment back the same way. Delivery state is never
// stored: it is recomputed from the acknowledgment records in the log.
// Undelivered mails and acks are driven again by the retry scans.
//
// Basic usage:
//
//	vault, err := peermail.LoadIdentity("identity.json", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	db, err := peermail.OpenSQLiteLog("peermail.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	caller, err := peermail.NewHTTPCaller(5*time.Second, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	agent, err := peermail.New(vault, db, caller,
//	    peermail.WithAddress("http://10.0.0.5:7465"),
//	    peermail.WithDirectory(dir),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer agent.Close()
//
//	id, err := agent.Send(ctx, peermail.ComposeRequest{
//	    Subject: "hello",
//	    Body:    "first mail",
//	    To:      []peermail.AgentID{bob},
//	})
//
// The agent answers calls from other peers through HandleCall; NewServer
// exposes it over HTTP.
package peermail
