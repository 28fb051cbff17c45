package server

import (
	"github.com/jalmeida85/tls13srv"
	"github.com/jalmeida85/tls13srv/codec"
	"github.com/jalmeida85/tls13srv/schedule"
	"github.com/jalmeida85/tls13srv/transcript"
)

// handleClientHello implements spec §4.4's numbered ClientHello handling
// steps 1-8, generalized from
// _examples/yaronf-mint/state-machine.go's linear client/server exchange
// into the explicit branch-and-return shape a HelloRetryRequest forces:
// this function can return control to ExpectingClientHello instead of
// advancing, exactly once, before committing to a key exchange.
func handleClientHello(st *State, cfg *Config, ev Event) ([]tls13srv.Action, error) {
	if st.Name != ExpectingClientHello {
		return fail(st, tls13srv.KindUnexpectedMessage, "ClientHello received outside ExpectingClientHello")
	}
	ch := ev.ClientHello
	if ch == nil {
		return fail(st, tls13srv.KindDecode, "nil ClientHello")
	}

	// Step 1: version check.
	versions, err := findSupportedVersions(ch)
	if err != nil || !containsVersion(versions, codec.VersionTLS13) {
		return fail(st, tls13srv.KindProtocolVersion, "client does not offer TLS 1.3")
	}

	// Step 2: cipher suite selection.
	suite, ok := cfg.SelectCipherSuite(ch.CipherSuites)
	if !ok {
		return fail(st, tls13srv.KindHandshakeFailure, "no common cipher suite")
	}
	sp, err := lookupSuite(suite)
	if err != nil {
		return fail(st, tls13srv.KindHandshakeFailure, "unsupported cipher suite selected")
	}
	st.Cipher = suite
	st.Version = codec.VersionTLS13

	// Step 3: populate HandshakeLogging.
	populateHandshakeLogging(st, ch)

	if compAlgoExt, has := ch.Extensions.Find(codec.ExtCompressCertificate); has && cfg.Compressor != nil {
		algos, err := codec.ParseCompressCertificateAlgorithms(compAlgoExt.Body)
		if err == nil {
			for _, a := range algos {
				if a == cfg.Compressor.Algorithm() {
					st.ServerCertCompAlgo = a
					break
				}
			}
		}
	}

	if st.HandshakeContext == nil {
		st.HandshakeContext = transcript.New(sp.hash)
	}
	if st.KeyScheduler == nil {
		st.KeyScheduler = schedule.New(sp.hash)
	}

	framedCH := codec.FrameMessage(codec.HandshakeTypeClientHello, ch.Marshal())
	st.HandshakeContext.Append(framedCH)

	// Step 4: PSK path.
	var chosenPSK *chosenPSKResult
	if pskExt, has := ch.Extensions.Find(codec.ExtPreSharedKey); has && cfg.TicketCipher != nil {
		chosenPSK, err = resolvePSK(st, cfg, sp, pskExt, framedCH)
		if err != nil {
			return fail(st, tls13srv.KindDecryptError, "PSK binder verification failed")
		}
	}

	// Step 5: key exchange decision.
	pskMode := PskModeNone
	if modesExt, has := ch.Extensions.Find(codec.ExtPSKKeyExchangeModes); has {
		modes, _ := codec.ParsePSKKeyExchangeModes(modesExt.Body)
		for _, m := range modes {
			if m == codec.PSKModeDheKe {
				pskMode = PskModeDheKe
			} else if m == codec.PSKModeKe && pskMode == PskModeNone {
				pskMode = PskModeKe
			}
		}
	}
	st.PskMode = pskMode

	needsDHE := chosenPSK == nil || pskMode == PskModeDheKe
	var clientShare codec.KeyShareEntry
	var haveClientShare bool
	if ksExt, has := ch.Extensions.Find(codec.ExtKeyShare); has {
		entries, _ := codec.ParseKeyShareClientHello(ksExt.Body)
		clientShare, haveClientShare = cfg.SelectGroup(entries)
	}

	if needsDHE && !haveClientShare {
		if st.KeyExchangeType == KeyExchangeHelloRetry {
			return fail(st, tls13srv.KindHandshakeFailure, "second HelloRetryRequest in the same connection")
		}
		preferred, anySupported := cfg.PreferredGroup(st.HandshakeLogging.ClientSupportedGroups)
		if !anySupported {
			return fail(st, tls13srv.KindHandshakeFailure, "no acceptable key exchange group")
		}
		actions, err := emitHelloRetryRequest(st, cfg, suite, preferred)
		if err != nil {
			return fail(st, tls13srv.KindInternalError, "failed to emit hello retry request")
		}
		return actions, nil
	}

	var dheSecret []byte
	if needsDHE {
		st.Group = clientShare.Group
		ephemeral, err := GenerateEphemeral(clientShare.Group)
		if err != nil {
			return fail(st, tls13srv.KindInternalError, "ephemeral key generation failed")
		}
		st.Ephemeral = ephemeral
		dheSecret, err = ephemeral.ComputeSharedSecret(clientShare)
		if err != nil {
			return fail(st, tls13srv.KindHandshakeFailure, "ECDHE agreement failed")
		}
	}

	if chosenPSK != nil {
		st.PskType = PskTypeResumption
		st.KeyScheduler.InitEarlySecret(chosenPSK.psk)
		st.ALPN = chosenPSK.alpn
		if chosenPSK.resumption != nil {
			st.TicketMaxEarlyDataSize = chosenPSK.resumption.MaxEarlyDataSize
		}
	} else {
		st.PskType = PskTypeNotAttempted
		st.KeyScheduler.InitEarlySecret(nil)
	}
	if negotiated, ok := cfg.SelectALPN(st.HandshakeLogging.ClientALPNProtocols); ok {
		st.ALPN = negotiated
	}
	if needsDHE {
		st.KeyExchangeType = KeyExchangeDheKe
		if chosenPSK != nil {
			st.KeyExchangeType = KeyExchangePskDheKe
		}
	} else {
		st.KeyExchangeType = KeyExchangePsk
	}

	emptyTranscriptHash := emptyHash(sp.hash)
	st.KeyScheduler.AdvanceToHandshakeSecret(dheSecret, emptyTranscriptHash)

	// Step 6: 0-RTT decision.
	earlyAccepted := false
	if chosenPSK != nil {
		if _, has := ch.Extensions.Find(codec.ExtEarlyData); has {
			earlyAccepted = decideEarlyData(st, cfg, chosenPSK)
		}
	}
	var earlyActions []tls13srv.Action
	if earlyAccepted {
		st.EarlyDataType = EarlyDataAccepted
		st.EarlyDataDeadline = cfg.now().Add(cfg.EarlyDataLifetime)
		earlySecret := st.KeyScheduler.ClientEarlyTrafficSecret(st.HandshakeContext.Sum())
		st.EarlyExporterMasterSecret = st.KeyScheduler.EarlyExporterMasterSecret(st.HandshakeContext.Sum())
		if err := installReadSecret(st.ReadRecordLayer, sp, st.KeyScheduler, earlySecret); err != nil {
			return fail(st, tls13srv.KindInternalError, "early traffic key installation failed")
		}
		earlyActions = append(earlyActions,
			tls13srv.SecretAvailable{Kind: tls13srv.SecretClientEarlyTraffic, Secret: earlySecret},
			tls13srv.ReportEarlyHandshakeSuccess{},
		)
	} else if chosenPSK != nil {
		st.EarlyDataType = EarlyDataRejected
	}

	// Step 7: ServerHello, handshake keys, EncryptedExtensions, cert flow, Finished.
	actions, err := sendServerFlight(st, cfg, ch, sp, suite, chosenPSK)
	if err != nil {
		return fail(st, tls13srv.KindHandshakeFailure, err.Error())
	}
	actions = append(earlyActions, actions...)

	// Step 8: next state.
	switch {
	case earlyAccepted:
		st.Name = AcceptingEarlyData
	case cfg.RequireClientAuth:
		st.Name = ExpectingCertificate
	default:
		st.Name = ExpectingFinished
	}

	return actions, nil
}

type chosenPSKResult struct {
	psk           []byte
	identity      []byte
	obfuscatedAge uint32
	index         int
	alpn          string
	resumption    *ResumptionState
}

func resolvePSK(st *State, cfg *Config, sp suiteParams, pskExt codec.Extension, framedCH []byte) (*chosenPSKResult, error) {
	identities, binders, err := codec.ParsePreSharedKeyClientHello(pskExt.Body)
	if err != nil || len(identities) == 0 || len(binders) != len(identities) {
		return nil, tls13srv.NewError(tls13srv.KindDecode, "malformed pre_shared_key extension")
	}
	// Truncated transcript: the ClientHello bytes up to (not including)
	// the binders list, per RFC 8446 §4.2.11.2. The caller has already
	// appended the full framed ClientHello to st.HandshakeContext, so each
	// binder is checked against a fresh transcript holding only the
	// truncated bytes, cut here from framedCH by truncatedClientHello.
	for i, id := range identities {
		state, err := cfg.TicketCipher.Decrypt(id.Identity)
		if err != nil {
			continue
		}
		sch := schedule.New(sp.hash)
		sch.InitEarlySecret(state.PSK)
		binderKey := sch.DeriveSecret(sch.EarlySecret(), "res binder", emptyHash(sp.hash))
		truncated := transcript.New(sp.hash)
		truncated.Append(truncatedClientHello(framedCH, len(binders[i])))
		finishedKey := truncated.FinishedKey(sch.ExpandLabel, binderKey)
		if err := truncated.VerifyFinished(finishedKey, binders[i]); err != nil {
			continue
		}
		return &chosenPSKResult{
			psk:           state.PSK,
			identity:      id.Identity,
			obfuscatedAge: id.ObfuscatedTicketAge,
			index:         i,
			alpn:          state.ALPN,
			resumption:    state,
		}, nil
	}
	return nil, tls13srv.NewError(tls13srv.KindDecryptError, "no PSK identity had a valid binder")
}

// truncatedClientHello strips a trailing binders list holding one binder
// (its 2-byte list length, the binder's 1-byte length and binderLen
// bytes), which is RFC 8446's "ClientHello1 without the binders list"
// when the PSK extension is the last extension and carries a single
// binder. With several binders the other entries stay in the result.
func truncatedClientHello(framedCH []byte, binderLen int) []byte {
	n := 2 + 1 + binderLen
	if len(framedCH) <= n {
		return framedCH
	}
	return framedCH[:len(framedCH)-n]
}

func decideEarlyData(st *State, cfg *Config, chosen *chosenPSKResult) bool {
	if !cfg.AllowEarlyData {
		return false
	}
	if chosen.resumption == nil {
		return false
	}
	if cfg.AppTokenValidator != nil {
		valid := func() (ok bool) {
			defer func() {
				if recover() != nil {
					ok = false
				}
			}()
			return cfg.AppTokenValidator.Validate(chosen.resumption.AppToken)
		}()
		if !valid {
			return false
		}
	}
	if cfg.ReplayCache != nil {
		result := cfg.ReplayCache.Check(chosen.identity, chosen.obfuscatedAge)
		st.ReplayCacheResult = result
		if result == ReplayResultReplay || result == ReplayResultMaybeReplay {
			return false
		}
	}
	return true
}

func emitHelloRetryRequest(st *State, cfg *Config, suite codec.CipherSuite, group codec.NamedGroup) ([]tls13srv.Action, error) {
	hrr := &codec.ServerHello{
		LegacyVersion:     codec.VersionTLS12,
		LegacySessionID:   []byte{},
		CipherSuite:       suite,
		LegacyCompression: 0,
		Extensions: codec.ExtensionList{
			{Type: codec.ExtSupportedVersions, Body: codec.BuildSupportedVersionsServer(codec.VersionTLS13)},
			{Type: codec.ExtKeyShare, Body: codec.BuildKeyShareHelloRetry(group)},
		},
	}
	hrr.Random = codec.HelloRetryRequestRandom
	framed := codec.FrameMessage(codec.HandshakeTypeServerHello, hrr.Marshal())

	st.HandshakeContext.ReplaceWithSyntheticHash()
	wire, err := appendAndProtect(st, framed)
	if err != nil {
		return nil, err
	}
	st.KeyExchangeType = KeyExchangeHelloRetry
	st.Name = ExpectingClientHello

	return []tls13srv.Action{tls13srv.WriteToSocket{Bytes: wire, Flush: true}}, nil
}

func findSupportedVersions(ch *codec.ClientHello) ([]codec.ProtocolVersion, error) {
	ext, has := ch.Extensions.Find(codec.ExtSupportedVersions)
	if !has {
		return nil, tls13srv.NewError(tls13srv.KindMissingExtension, "supported_versions missing")
	}
	return codec.ParseSupportedVersions(ext.Body)
}

func containsVersion(versions []codec.ProtocolVersion, target codec.ProtocolVersion) bool {
	for _, v := range versions {
		if v == target {
			return true
		}
	}
	return false
}

func populateHandshakeLogging(st *State, ch *codec.ClientHello) {
	hl := &st.HandshakeLogging
	hl.ClientLegacyVersion = ch.LegacyVersion
	hl.ClientCiphers = ch.CipherSuites
	hl.ClientRandom = ch.Random
	hl.ClientSessionIDSent = len(ch.LegacySessionID) > 0
	for _, e := range ch.Extensions {
		hl.ClientExtensions = append(hl.ClientExtensions, e.Type)
		switch e.Type {
		case codec.ExtServerName:
			if sni, err := codec.NormalizeServerName(e.Body); err == nil {
				hl.ClientSNI = sni
			}
		case codec.ExtSupportedVersions:
			hl.ClientSupportedVersions, _ = codec.ParseSupportedVersions(e.Body)
		case codec.ExtSupportedGroups:
			hl.ClientSupportedGroups = parseNamedGroupList(e.Body)
		case codec.ExtKeyShare:
			entries, _ := codec.ParseKeyShareClientHello(e.Body)
			for _, k := range entries {
				hl.ClientKeyShares = append(hl.ClientKeyShares, k.Group)
			}
		case codec.ExtPSKKeyExchangeModes:
			hl.ClientKeyExchangeModes, _ = codec.ParsePSKKeyExchangeModes(e.Body)
		case codec.ExtSignatureAlgorithms:
			hl.ClientSignatureAlgorithms = parseSignatureSchemeList(e.Body)
		case codec.ExtALPN:
			hl.ClientALPNProtocols, _ = codec.ParseALPNProtocolList(e.Body)
		}
	}
}

func parseNamedGroupList(body []byte) []codec.NamedGroup {
	r := codec.NewReader(body)
	raw, err := r.Vector16()
	if err != nil {
		return nil
	}
	inner := codec.NewReader(raw)
	var groups []codec.NamedGroup
	for !inner.AtEnd() {
		v, err := inner.Uint16()
		if err != nil {
			break
		}
		groups = append(groups, codec.NamedGroup(v))
	}
	return groups
}

func parseSignatureSchemeList(body []byte) []codec.SignatureScheme {
	r := codec.NewReader(body)
	raw, err := r.Vector16()
	if err != nil {
		return nil
	}
	inner := codec.NewReader(raw)
	var schemes []codec.SignatureScheme
	for !inner.AtEnd() {
		v, err := inner.Uint16()
		if err != nil {
			break
		}
		schemes = append(schemes, codec.SignatureScheme(v))
	}
	return schemes
}

func emptyHash(alg transcript.HashAlgorithm) []byte {
	return alg.New().Sum(nil)
}
