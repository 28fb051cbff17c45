// Package schedule implements the RFC 8446 §7.1 key schedule behind the
// Key Scheduler Adapter boundary: HKDF-Extract/Expand-Label wired through
// golang.org/x/crypto/hkdf, and the Derive-Secret chain that turns a
// transcript hash plus an evolving secret into early/handshake/master
// traffic secrets.
//
// The label format and the deriveSecret(params, secret, label, transcript)
// calling convention follow _examples/yaronf-mint/attestation.go, whose
// DeriveAttestationMainSecret/DeriveAttestationSecret both assume exactly
// this primitive already exists in the package; this file is that
// primitive, generalized to the full handshake/application key schedule
// rather than just the attestation extension.
package schedule

import (
	"crypto/hmac"
	"encoding/binary"

	"golang.org/x/crypto/hkdf"

	"github.com/jalmeida85/tls13srv/transcript"
)

// Secret identifies a position in the RFC 8446 key-schedule diagram.
type Secret int

const (
	EarlySecret Secret = iota
	HandshakeSecret
	MasterSecret
	ClientEarlyTrafficSecret
	EarlyExporterMasterSecret
	ClientHandshakeTrafficSecret
	ServerHandshakeTrafficSecret
	ClientApplicationTrafficSecret0
	ServerApplicationTrafficSecret0
	ExporterMasterSecret
	ResumptionMasterSecret
)

// Scheduler is the stateful key-schedule boundary the state machine core
// drives: it holds the evolving early/handshake/master secrets and hands
// back the derived per-direction traffic secrets the record layer needs.
// It never touches the AEAD keys themselves — callers call TrafficKeyIV
// to turn a traffic secret into the key/iv pair a record.AeadCipher
// construction needs.
type Scheduler struct {
	hash transcript.HashAlgorithm

	earlySecret            []byte
	handshakeSecret        []byte
	masterSecret           []byte
	resumptionMasterSecret []byte
	exporterMasterSecret   []byte
}

func New(hash transcript.HashAlgorithm) *Scheduler {
	return &Scheduler{hash: hash}
}

func (s *Scheduler) zeroKey() []byte {
	return make([]byte, s.hash.Size())
}

// hkdfExtract implements HKDF-Extract(salt, IKM) directly (not through
// golang.org/x/crypto/hkdf.New, which fuses extract+expand for the
// common case) because the key schedule needs the intermediate extracted
// secret on its own, e.g. to hand to DeriveSecret for early/handshake
// traffic secrets before the expand phase happens.
func (s *Scheduler) hkdfExtract(salt, ikm []byte) []byte {
	mac := hmac.New(s.hash.New, salt)
	mac.Write(ikm)
	return mac.Sum(nil)
}

// ExpandLabel implements HKDF-Expand-Label(Secret, Label, Context, Length)
// from RFC 8446 §7.1, building the HkdfLabel structure and calling
// golang.org/x/crypto/hkdf.Expand over it.
func (s *Scheduler) ExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	full := "tls13 " + label
	hkdfLabel := make([]byte, 0, 2+1+len(full)+1+len(context))
	var lenField [2]byte
	binary.BigEndian.PutUint16(lenField[:], uint16(length))
	hkdfLabel = append(hkdfLabel, lenField[:]...)
	hkdfLabel = append(hkdfLabel, byte(len(full)))
	hkdfLabel = append(hkdfLabel, full...)
	hkdfLabel = append(hkdfLabel, byte(len(context)))
	hkdfLabel = append(hkdfLabel, context...)

	out := make([]byte, length)
	reader := hkdf.Expand(s.hash.New, secret, hkdfLabel)
	if _, err := reader.Read(out); err != nil {
		panic("schedule: hkdf expand failed: " + err.Error())
	}
	return out
}

// DeriveSecret implements Derive-Secret(Secret, Label, Messages) =
// HKDF-Expand-Label(Secret, Label, Transcript-Hash(Messages), Hash.length).
func (s *Scheduler) DeriveSecret(secret []byte, label string, transcriptHash []byte) []byte {
	return s.ExpandLabel(secret, label, transcriptHash, s.hash.Size())
}

// InitEarlySecret starts the schedule. psk is the resumption PSK (or the
// external PSK bytes); pass nil for a full handshake with no PSK, which
// HKDF-Extracts a zero-filled IKM exactly as RFC 8446 specifies.
func (s *Scheduler) InitEarlySecret(psk []byte) {
	ikm := psk
	if ikm == nil {
		ikm = s.zeroKey()
	}
	s.earlySecret = s.hkdfExtract(s.zeroKey(), ikm)
}

// EarlySecret returns the current early secret, e.g. for deriving
// client_early_traffic_secret or the early exporter master secret.
func (s *Scheduler) EarlySecret() []byte {
	return s.earlySecret
}

// AdvanceToHandshakeSecret derives the handshake secret from the early
// secret and the (EC)DHE shared secret, per the schedule diagram's
// second HKDF-Extract.
func (s *Scheduler) AdvanceToHandshakeSecret(dheSharedSecret []byte, emptyTranscriptHash []byte) {
	salt := s.DeriveSecret(s.earlySecret, "derived", emptyTranscriptHash)
	ikm := dheSharedSecret
	if ikm == nil {
		ikm = s.zeroKey()
	}
	s.handshakeSecret = s.hkdfExtract(salt, ikm)
}

// AdvanceToMasterSecret derives the master secret from the handshake
// secret, per the schedule diagram's third HKDF-Extract.
func (s *Scheduler) AdvanceToMasterSecret(emptyTranscriptHash []byte) {
	salt := s.DeriveSecret(s.handshakeSecret, "derived", emptyTranscriptHash)
	s.masterSecret = s.hkdfExtract(salt, s.zeroKey())
}

// ClientHandshakeTrafficSecret derives c_hs_traffic, the key the client's
// Certificate/CertificateVerify/Finished flight (and the server's
// symmetric read side) is protected under.
func (s *Scheduler) ClientHandshakeTrafficSecret(transcriptHash []byte) []byte {
	return s.DeriveSecret(s.handshakeSecret, "c hs traffic", transcriptHash)
}

// ServerHandshakeTrafficSecret derives s_hs_traffic.
func (s *Scheduler) ServerHandshakeTrafficSecret(transcriptHash []byte) []byte {
	return s.DeriveSecret(s.handshakeSecret, "s hs traffic", transcriptHash)
}

// ClientApplicationTrafficSecret0 derives c_ap_traffic (generation 0).
func (s *Scheduler) ClientApplicationTrafficSecret0(transcriptHash []byte) []byte {
	return s.DeriveSecret(s.masterSecret, "c ap traffic", transcriptHash)
}

// ServerApplicationTrafficSecret0 derives s_ap_traffic (generation 0).
func (s *Scheduler) ServerApplicationTrafficSecret0(transcriptHash []byte) []byte {
	return s.DeriveSecret(s.masterSecret, "s ap traffic", transcriptHash)
}

// ExporterMasterSecret derives exporter_master, computed once after the
// full transcript (through server Finished) is known.
func (s *Scheduler) ExporterMasterSecret(transcriptHash []byte) []byte {
	s.exporterMasterSecret = s.DeriveSecret(s.masterSecret, "exp master", transcriptHash)
	return s.exporterMasterSecret
}

// ResumptionMasterSecret derives resumption_master, computed once after
// the full transcript (through client Finished) is known.
func (s *Scheduler) ResumptionMasterSecret(transcriptHash []byte) []byte {
	s.resumptionMasterSecret = s.DeriveSecret(s.masterSecret, "res master", transcriptHash)
	return s.resumptionMasterSecret
}

// ClientEarlyTrafficSecret derives c_e_traffic for 0-RTT, bound to the
// transcript through ClientHello only.
func (s *Scheduler) ClientEarlyTrafficSecret(transcriptHash []byte) []byte {
	return s.DeriveSecret(s.earlySecret, "c e traffic", transcriptHash)
}

// EarlyExporterMasterSecret derives early_exporter_master for 0-RTT.
func (s *Scheduler) EarlyExporterMasterSecret(transcriptHash []byte) []byte {
	return s.DeriveSecret(s.earlySecret, "e exp master", transcriptHash)
}

// ResumptionPSK derives the PSK for a future connection from this
// connection's resumption_master_secret and a ticket nonce, per
// RFC 8446 §4.6.1.
func (s *Scheduler) ResumptionPSK(ticketNonce []byte) []byte {
	return s.ExpandLabel(s.resumptionMasterSecret, "resumption", ticketNonce, s.hash.Size())
}

// TrafficKeyIV derives the AEAD key and IV for one traffic secret, per
// RFC 8446 §7.3 ("[sender]_write_key" / "[sender]_write_iv").
func (s *Scheduler) TrafficKeyIV(trafficSecret []byte, keyLen int) (key, iv []byte) {
	key = s.ExpandLabel(trafficSecret, "key", nil, keyLen)
	iv = s.ExpandLabel(trafficSecret, "iv", nil, 12)
	return key, iv
}

// NextGenerationTrafficSecret implements KeyUpdate's secret ratchet:
// application_traffic_secret_N+1 = HKDF-Expand-Label(secret_N, "traffic upd", "", Hash.length).
func (s *Scheduler) NextGenerationTrafficSecret(current []byte) []byte {
	return s.ExpandLabel(current, "traffic upd", nil, s.hash.Size())
}

// ClearMasterSecret zeroes the master secret once no further traffic or
// exporter secrets will be derived from it, matching the "erase early
// secret" / forward-secrecy guidance the schedule diagram calls for.
func (s *Scheduler) ClearMasterSecret() {
	for i := range s.masterSecret {
		s.masterSecret[i] = 0
	}
	s.masterSecret = nil
}
