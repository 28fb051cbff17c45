package server

import (
	"crypto/rand"

	"github.com/jalmeida85/tls13srv"
	"github.com/jalmeida85/tls13srv/codec"
	"github.com/jalmeida85/tls13srv/record"
)

// fillRandom fills b with fresh random bytes for a ServerHello.random
// field. A read failure from crypto/rand indicates a broken host entropy
// source, not a recoverable protocol condition, so it panics rather than
// threading an error through every caller of buildServerHello.
func fillRandom(b []byte) {
	if _, err := rand.Read(b); err != nil {
		panic("server: crypto/rand unavailable: " + err.Error())
	}
}

// sendServerFlight builds and sends everything spec §4.4 step 7 calls for
// after a ClientHello the core has decided to answer directly (no second
// HelloRetryRequest round): ServerHello, the handshake traffic key
// switchover, EncryptedExtensions, the certificate flight (skipped whenever
// a PSK was accepted, with or without DHE), and Finished — followed by the switch to the
// server's application traffic key, mirroring the single outbound flight
// _examples/yaronf-mint/state-machine.go's ServerStateStart13 builds before
// ever reading another message from the client.
func sendServerFlight(st *State, cfg *Config, ch *codec.ClientHello, sp suiteParams, suite codec.CipherSuite, chosenPSK *chosenPSKResult) ([]tls13srv.Action, error) {
	var actions []tls13srv.Action

	sh := buildServerHello(st, cfg, suite, chosenPSK)
	framedSH := codec.FrameMessage(codec.HandshakeTypeServerHello, sh.Marshal())
	wire, err := appendAndProtect(st, framedSH)
	if err != nil {
		return nil, err
	}
	actions = append(actions, tls13srv.WriteToSocket{Bytes: wire, Flush: false})

	handshakeTranscriptHash := st.HandshakeContext.Sum()
	clientHS := st.KeyScheduler.ClientHandshakeTrafficSecret(handshakeTranscriptHash)
	serverHS := st.KeyScheduler.ServerHandshakeTrafficSecret(handshakeTranscriptHash)
	st.ClientHandshakeSecret = clientHS
	st.ServerHandshakeSecret = serverHS

	if err := installWriteSecret(st.WriteRecordLayer, sp, st.KeyScheduler, serverHS); err != nil {
		return nil, err
	}
	actions = append(actions, tls13srv.SecretAvailable{Kind: tls13srv.SecretServerHandshakeTraffic, Secret: serverHS})

	if st.EarlyDataType == EarlyDataAccepted {
		handshakeReader := record.NewReadRecordLayer()
		if err := installReadSecret(handshakeReader, sp, st.KeyScheduler, clientHS); err != nil {
			return nil, err
		}
		st.HandshakeReadRecordLayer = handshakeReader
	} else if err := installReadSecret(st.ReadRecordLayer, sp, st.KeyScheduler, clientHS); err != nil {
		return nil, err
	}
	actions = append(actions, tls13srv.SecretAvailable{Kind: tls13srv.SecretClientHandshakeTraffic, Secret: clientHS})

	ee := buildEncryptedExtensions(st, cfg, ch, chosenPSK)
	framedEE := codec.FrameMessage(codec.HandshakeTypeEncryptedExtensions, ee.Marshal())
	wire, err = appendAndProtect(st, framedEE)
	if err != nil {
		return nil, err
	}
	actions = append(actions, tls13srv.WriteToSocket{Bytes: wire, Flush: false})

	if chosenPSK == nil {
		if cfg.RequireClientAuth {
			cr := &codec.CertificateRequest{CertificateRequestContext: []byte{}}
			framedCR := codec.FrameMessage(codec.HandshakeTypeCertificateRequest, cr.Marshal())
			wire, err = appendAndProtect(st, framedCR)
			if err != nil {
				return nil, err
			}
			actions = append(actions, tls13srv.WriteToSocket{Bytes: wire, Flush: false})
		}

		certActions, err := sendCertificateFlight(st, cfg)
		if err != nil {
			return nil, err
		}
		actions = append(actions, certActions...)
	}

	finishedKey := st.HandshakeContext.FinishedKey(st.KeyScheduler.ExpandLabel, serverHS)
	verifyData := st.HandshakeContext.FinishedVerifyData(finishedKey)
	fin := &codec.Finished{VerifyData: verifyData}
	framedFin := codec.FrameMessage(codec.HandshakeTypeFinished, fin.Marshal())
	wire, err = appendAndProtect(st, framedFin)
	if err != nil {
		return nil, err
	}
	actions = append(actions, tls13srv.WriteToSocket{Bytes: wire, Flush: true})

	// RFC 8446 §7.1: client_application_traffic_secret_0,
	// server_application_traffic_secret_0 and exporter_master_secret are
	// all derived at the same transcript point, through the server's
	// Finished — resumption_master_secret alone waits for the client's.
	appTranscriptHash := st.HandshakeContext.Sum()
	clientApp := st.KeyScheduler.ClientApplicationTrafficSecret0(appTranscriptHash)
	serverApp := st.KeyScheduler.ServerApplicationTrafficSecret0(appTranscriptHash)
	exporterMaster := st.KeyScheduler.ExporterMasterSecret(appTranscriptHash)
	st.ClientApplicationSecret = clientApp
	st.ServerApplicationSecret = serverApp
	st.ExporterMasterSecret = exporterMaster

	if err := installWriteSecret(st.WriteRecordLayer, sp, st.KeyScheduler, serverApp); err != nil {
		return nil, err
	}
	actions = append(actions,
		tls13srv.SecretAvailable{Kind: tls13srv.SecretServerApplicationTraffic, Secret: serverApp},
		tls13srv.SecretAvailable{Kind: tls13srv.SecretClientApplicationTraffic, Secret: clientApp},
		tls13srv.SecretAvailable{Kind: tls13srv.SecretExporterMaster, Secret: exporterMaster},
	)

	return actions, nil
}

func buildServerHello(st *State, cfg *Config, suite codec.CipherSuite, chosenPSK *chosenPSKResult) *codec.ServerHello {
	exts := codec.ExtensionList{
		{Type: codec.ExtSupportedVersions, Body: codec.BuildSupportedVersionsServer(codec.VersionTLS13)},
	}
	if st.Ephemeral != nil {
		exts = append(exts, codec.Extension{
			Type: codec.ExtKeyShare,
			Body: codec.BuildKeyShareServer(codec.KeyShareEntry{Group: st.Ephemeral.Group, KeyExchange: st.Ephemeral.PublicKeyBytes()}),
		})
	}
	if chosenPSK != nil {
		exts = append(exts, codec.Extension{
			Type: codec.ExtPreSharedKey,
			Body: codec.BuildPreSharedKeyServer(uint16(chosenPSK.index)),
		})
	}
	sh := &codec.ServerHello{
		LegacyVersion:     codec.VersionTLS12,
		LegacySessionID:   []byte{},
		CipherSuite:       suite,
		LegacyCompression: 0,
		Extensions:        exts,
	}
	var random [32]byte
	fillRandom(random[:])
	sh.Random = random
	return sh
}

func buildEncryptedExtensions(st *State, cfg *Config, ch *codec.ClientHello, chosenPSK *chosenPSKResult) *codec.EncryptedExtensions {
	var exts codec.ExtensionList
	if st.HandshakeLogging.ClientSNI != "" {
		exts = append(exts, codec.Extension{Type: codec.ExtServerName})
	}
	if st.ALPN != "" {
		exts = append(exts, codec.Extension{Type: codec.ExtALPN, Body: codec.BuildALPNProtocolList([]string{st.ALPN})})
	}
	if st.EarlyDataType == EarlyDataAccepted {
		exts = append(exts, codec.Extension{Type: codec.ExtEarlyData})
	}
	if cfg.Extensions != nil {
		exts = append(exts, cfg.Extensions.GetExtensions(ch)...)
	}
	ee := &codec.EncryptedExtensions{Extensions: exts}
	if st.Extensions != nil {
		st.Extensions.OnEncryptedExtensions(ee.Extensions)
	}
	return ee
}

// sendCertificateFlight emits Certificate (optionally RFC 8879-compressed)
// and CertificateVerify, consulting cfg.CertManager for both the chain and
// the signature itself — this core never touches a private key or X.509
// structure directly (spec §1 Non-goals).
func sendCertificateFlight(st *State, cfg *Config) ([]tls13srv.Action, error) {
	var actions []tls13srv.Action
	if cfg.CertManager == nil {
		return nil, tls13srv.NewError(tls13srv.KindInternalError, "no CertManager configured")
	}
	chain, scheme, err := cfg.CertManager.GetCert(st.HandshakeLogging.ClientSNI, sigSchemesOrDefault(st), cfg.Groups)
	if err != nil {
		return nil, err
	}
	st.ServerCertChain = chain
	st.SigScheme = scheme

	cert := &codec.Certificate{CertificateRequestContext: []byte{}, Entries: chain}
	var framedCert []byte
	if st.ServerCertCompAlgo != 0 && cfg.Compressor != nil && cfg.Compressor.Algorithm() == st.ServerCertCompAlgo {
		raw := cert.Marshal()
		compressedData, err := cfg.Compressor.Compress(raw)
		if err != nil {
			return nil, err
		}
		compressed := &codec.CompressedCertificate{
			Algorithm:          st.ServerCertCompAlgo,
			UncompressedLength: uint32(len(raw)),
			CompressedData:     compressedData,
		}
		framedCert = codec.FrameMessage(codec.HandshakeTypeCompressedCertificate, compressed.Marshal())
	} else {
		framedCert = codec.FrameMessage(codec.HandshakeTypeCertificate, cert.Marshal())
	}
	wire, err := appendAndProtect(st, framedCert)
	if err != nil {
		return nil, err
	}
	actions = append(actions, tls13srv.WriteToSocket{Bytes: wire, Flush: false})

	digest := st.HandshakeContext.Sum()
	sig, err := cfg.CertManager.Sign(scheme, digest)
	if err != nil {
		return nil, err
	}
	cv := &codec.CertificateVerify{Algorithm: scheme, Signature: sig}
	framedCV := codec.FrameMessage(codec.HandshakeTypeCertificateVerify, cv.Marshal())
	wire, err = appendAndProtect(st, framedCV)
	if err != nil {
		return nil, err
	}
	actions = append(actions, tls13srv.WriteToSocket{Bytes: wire, Flush: false})

	return actions, nil
}

func sigSchemesOrDefault(st *State) []codec.SignatureScheme {
	if len(st.HandshakeLogging.ClientSignatureAlgorithms) > 0 {
		return st.HandshakeLogging.ClientSignatureAlgorithms
	}
	return []codec.SignatureScheme{codec.SigSchemeEcdsaSecp256r1Sha256}
}
