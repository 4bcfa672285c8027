package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Storage serialization is an implementation choice (spec §6: "private to
// core"); it only needs to be deterministic and roundtrip-identical, not
// to match the canonical signing image. A manual length-prefixed binary
// encoding keeps this module's storage layer dependency-free of reflection
// based codecs, mirroring the deliberate manual byte-layout style the
// canonical transaction image itself already uses.

func putBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := r.Read(lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	out := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// EncodeTransaction serializes tx for storage.
func EncodeTransaction(tx *Transaction) []byte {
	var buf bytes.Buffer
	putBytes(&buf, []byte(tx.ID))
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], tx.Version)
	buf.Write(u16[:])
	buf.WriteByte(byte(tx.Type))
	buf.Write(tx.Sender[:])
	buf.Write(tx.Receiver[:])
	putUint64(&buf, tx.Amount.Value)
	putBytes(&buf, []byte(tx.Amount.Currency))
	putUint64(&buf, tx.Fee)
	putUint64(&buf, tx.Nonce)
	putUint64(&buf, tx.TimestampMs)
	putBytes(&buf, tx.Payload)
	putBytes(&buf, tx.SenderPublicKey)
	putBytes(&buf, tx.Signature)
	putBytes(&buf, tx.Proof)
	putBytes(&buf, tx.AmountCommitment)
	return buf.Bytes()
}

// DecodeTransaction reverses EncodeTransaction.
func DecodeTransaction(data []byte) (Transaction, error) {
	r := bytes.NewReader(data)
	var tx Transaction

	id, err := readBytes(r)
	if err != nil {
		return tx, fmt.Errorf("decode transaction: id: %w", err)
	}
	tx.ID = string(id)

	var u16 [2]byte
	if _, err := r.Read(u16[:]); err != nil {
		return tx, fmt.Errorf("decode transaction: version: %w", err)
	}
	tx.Version = binary.LittleEndian.Uint16(u16[:])

	typeByte, err := r.ReadByte()
	if err != nil {
		return tx, fmt.Errorf("decode transaction: type: %w", err)
	}
	tx.Type = TransactionType(typeByte)

	if _, err := r.Read(tx.Sender[:]); err != nil {
		return tx, fmt.Errorf("decode transaction: sender: %w", err)
	}
	if _, err := r.Read(tx.Receiver[:]); err != nil {
		return tx, fmt.Errorf("decode transaction: receiver: %w", err)
	}

	value, err := readUint64(r)
	if err != nil {
		return tx, fmt.Errorf("decode transaction: amount value: %w", err)
	}
	currency, err := readBytes(r)
	if err != nil {
		return tx, fmt.Errorf("decode transaction: currency: %w", err)
	}
	tx.Amount = Amount{Value: value, Currency: Currency(currency)}

	if tx.Fee, err = readUint64(r); err != nil {
		return tx, fmt.Errorf("decode transaction: fee: %w", err)
	}
	if tx.Nonce, err = readUint64(r); err != nil {
		return tx, fmt.Errorf("decode transaction: nonce: %w", err)
	}
	if tx.TimestampMs, err = readUint64(r); err != nil {
		return tx, fmt.Errorf("decode transaction: timestamp: %w", err)
	}
	if tx.Payload, err = readBytes(r); err != nil {
		return tx, fmt.Errorf("decode transaction: payload: %w", err)
	}
	if tx.SenderPublicKey, err = readBytes(r); err != nil {
		return tx, fmt.Errorf("decode transaction: sender public key: %w", err)
	}
	if tx.Signature, err = readBytes(r); err != nil {
		return tx, fmt.Errorf("decode transaction: signature: %w", err)
	}
	if tx.Proof, err = readBytes(r); err != nil {
		return tx, fmt.Errorf("decode transaction: proof: %w", err)
	}
	if tx.AmountCommitment, err = readBytes(r); err != nil {
		return tx, fmt.Errorf("decode transaction: amount commitment: %w", err)
	}
	return tx, nil
}

// EncodeBlock serializes a block (header + transactions) for storage.
func EncodeBlock(b *Block) []byte {
	var buf bytes.Buffer
	putUint64(&buf, b.Header.Height)
	buf.Write(b.Header.Hash[:])
	buf.Write(b.Header.ParentHash[:])
	putUint64(&buf, b.Header.TimestampMs)
	buf.Write(b.Header.Proposer[:])
	buf.Write(b.Header.StateRoot[:])
	buf.Write(b.Header.TxRoot[:])
	putBytes(&buf, b.Header.Signature)

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(b.Transactions)))
	buf.Write(count[:])
	for i := range b.Transactions {
		putBytes(&buf, EncodeTransaction(&b.Transactions[i]))
	}
	return buf.Bytes()
}

// DecodeBlock reverses EncodeBlock.
func DecodeBlock(data []byte) (Block, error) {
	r := bytes.NewReader(data)
	var b Block

	height, err := readUint64(r)
	if err != nil {
		return b, fmt.Errorf("decode block: height: %w", err)
	}
	b.Header.Height = height

	if _, err := r.Read(b.Header.Hash[:]); err != nil {
		return b, fmt.Errorf("decode block: hash: %w", err)
	}
	if _, err := r.Read(b.Header.ParentHash[:]); err != nil {
		return b, fmt.Errorf("decode block: parent hash: %w", err)
	}
	if b.Header.TimestampMs, err = readUint64(r); err != nil {
		return b, fmt.Errorf("decode block: timestamp: %w", err)
	}
	if _, err := r.Read(b.Header.Proposer[:]); err != nil {
		return b, fmt.Errorf("decode block: proposer: %w", err)
	}
	if _, err := r.Read(b.Header.StateRoot[:]); err != nil {
		return b, fmt.Errorf("decode block: state root: %w", err)
	}
	if _, err := r.Read(b.Header.TxRoot[:]); err != nil {
		return b, fmt.Errorf("decode block: tx root: %w", err)
	}
	if b.Header.Signature, err = readBytes(r); err != nil {
		return b, fmt.Errorf("decode block: signature: %w", err)
	}

	var count [4]byte
	if _, err := r.Read(count[:]); err != nil {
		return b, fmt.Errorf("decode block: tx count: %w", err)
	}
	n := binary.LittleEndian.Uint32(count[:])
	b.Transactions = make([]Transaction, n)
	for i := uint32(0); i < n; i++ {
		raw, err := readBytes(r)
		if err != nil {
			return b, fmt.Errorf("decode block: tx %d: %w", i, err)
		}
		tx, err := DecodeTransaction(raw)
		if err != nil {
			return b, fmt.Errorf("decode block: tx %d: %w", i, err)
		}
		b.Transactions[i] = tx
	}
	return b, nil
}
