package wire

import "github.com/hdds-io/hdds/pkg/herrors"

// RTPSMagic is the 4-byte message-header magic, spec.md §4.1/§6.
var RTPSMagic = [4]byte{'R', 'T', 'P', 'S'}

// ProtocolVersion is (major, minor); default 2.3 per spec.md §6.
type ProtocolVersion struct {
	Major, Minor byte
}

var DefaultProtocolVersion = ProtocolVersion{2, 3}

// VendorID identifies the dialect; native HDDS vendor id is 0x01AA.
type VendorID [2]byte

var NativeVendorID = VendorID{0x01, 0xAA}

// MessageHeader is magic(4) + version(2) + vendor(2) + guid prefix(12).
type MessageHeader struct {
	Version    ProtocolVersion
	Vendor     VendorID
	GuidPrefix [12]byte
}

func (c *WriteCursor) MessageHeader(h MessageHeader) {
	c.Raw(RTPSMagic[:])
	c.U8(h.Version.Major)
	c.U8(h.Version.Minor)
	c.Raw(h.Vendor[:])
	c.Raw(h.GuidPrefix[:])
}

func (c *ReadCursor) MessageHeader() (MessageHeader, error) {
	var h MessageHeader
	magic, err := c.Raw(4)
	if err != nil {
		return h, err
	}
	if magic[0] != RTPSMagic[0] || magic[1] != RTPSMagic[1] || magic[2] != RTPSMagic[2] || magic[3] != RTPSMagic[3] {
		return h, herrors.AtOffset(herrors.KindInvalidFormat, "wire.MessageHeader", c.offset-4, "bad magic")
	}
	major, err := c.U8()
	if err != nil {
		return h, err
	}
	minor, err := c.U8()
	if err != nil {
		return h, err
	}
	h.Version = ProtocolVersion{major, minor}
	vendor, err := c.Raw(2)
	if err != nil {
		return h, err
	}
	copy(h.Vendor[:], vendor)
	prefix, err := c.Raw(12)
	if err != nil {
		return h, err
	}
	copy(h.GuidPrefix[:], prefix)
	return h, nil
}
