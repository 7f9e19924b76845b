package bridge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Wire descriptors are the serialized view of the registry: what classes and
// enums an engine carries, compact enough to ship to inspection tooling and
// stable enough to digest. Encoding is canonical CBOR, so equal registries
// produce equal bytes and therefore equal digests.

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bridge: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// CallableDescriptor describes one bound overload. Params exclude the
// receiver; Result is empty for void callables; Policy is empty for
// Automatic.
type CallableDescriptor struct {
	Params []string `cbor:"1,keyasint"`
	Result string   `cbor:"2,keyasint,omitempty"`
	Policy string   `cbor:"3,keyasint,omitempty"`
	Const  bool     `cbor:"4,keyasint,omitempty"`
}

// MethodDescriptor describes one named method and its overload set, in
// declaration order.
type MethodDescriptor struct {
	Name      string               `cbor:"1,keyasint"`
	Overloads []CallableDescriptor `cbor:"2,keyasint"`
	Static    bool                 `cbor:"3,keyasint,omitempty"`
}

// PropertyDescriptor describes one bound property.
type PropertyDescriptor struct {
	Name     string `cbor:"1,keyasint"`
	Type     string `cbor:"2,keyasint,omitempty"`
	ReadOnly bool   `cbor:"3,keyasint,omitempty"`
	Static   bool   `cbor:"4,keyasint,omitempty"`
	Const    bool   `cbor:"5,keyasint,omitempty"`
}

// ClassDescriptor is the wire view of one registered class. It carries only
// the class's own members; inherited ones are reachable through Base.
type ClassDescriptor struct {
	Name          string               `cbor:"1,keyasint"`
	ID            uint32               `cbor:"2,keyasint"`
	Type          string               `cbor:"3,keyasint"`
	Base          string               `cbor:"4,keyasint,omitempty"`
	InstanceSize  uint64               `cbor:"5,keyasint"`
	Constructible bool                 `cbor:"6,keyasint"`
	Constructors  []CallableDescriptor `cbor:"7,keyasint,omitempty"`
	Methods       []MethodDescriptor   `cbor:"8,keyasint,omitempty"`
	Properties    []PropertyDescriptor `cbor:"9,keyasint,omitempty"`
	Constants     []string             `cbor:"10,keyasint,omitempty"`
	CanCopy       bool                 `cbor:"11,keyasint,omitempty"`
}

// EnumEntryDescriptor is one enum entry.
type EnumEntryDescriptor struct {
	Name  string `cbor:"1,keyasint"`
	Value int64  `cbor:"2,keyasint"`
}

// EnumDescriptor is the wire view of one registered enum.
type EnumDescriptor struct {
	Name    string                `cbor:"1,keyasint"`
	ID      uint32                `cbor:"2,keyasint"`
	Type    string                `cbor:"3,keyasint"`
	Entries []EnumEntryDescriptor `cbor:"4,keyasint"`
}

// RegistryDescriptor is the wire view of a whole engine registry, classes
// and enums in registration order.
type RegistryDescriptor struct {
	EngineID string            `cbor:"1,keyasint"`
	Classes  []ClassDescriptor `cbor:"2,keyasint"`
	Enums    []EnumDescriptor  `cbor:"3,keyasint"`
}

// ---------------------------------------------------------------------------
// Description
// ---------------------------------------------------------------------------

func describeCallable(c *Callable) CallableDescriptor {
	d := CallableDescriptor{Const: c.constRecv}
	start := 0
	if c.hasRecv {
		start = 1
	}
	d.Params = make([]string, 0, len(c.params)-start)
	for _, p := range c.params[start:] {
		d.Params = append(d.Params, p.String())
	}
	t := c.fn.Type()
	for i := 0; i < t.NumOut(); i++ {
		if t.Out(i) != errorType {
			d.Result = t.Out(i).String()
			break
		}
	}
	if c.policy != Automatic {
		d.Policy = c.policy.String()
	}
	return d
}

func describeTable(t *memberTable, static bool, methods *[]MethodDescriptor, props *[]PropertyDescriptor, consts *[]string) {
	t.each(func(m *member) {
		switch m.kind {
		case memberMethod:
			md := MethodDescriptor{Name: m.name, Static: static}
			for _, c := range m.overloads {
				md.Overloads = append(md.Overloads, describeCallable(c))
			}
			*methods = append(*methods, md)
		case memberProperty:
			pd := PropertyDescriptor{
				Name:     m.name,
				ReadOnly: m.setter == nil,
				Static:   static,
				Const:    m.constResult,
			}
			if m.getter != nil {
				pd.Type = describeCallable(m.getter).Result
			}
			*props = append(*props, pd)
		case memberConst:
			*consts = append(*consts, m.name)
		}
	})
}

// DescribeClass builds the wire view of one class.
func DescribeClass(m *ClassMeta) ClassDescriptor {
	d := ClassDescriptor{
		Name:          m.name,
		ID:            m.id,
		Type:          m.rtype.String(),
		InstanceSize:  uint64(m.instanceSize),
		Constructible: m.constructible,
		CanCopy:       m.copyClone != nil,
	}
	if m.base != nil {
		d.Base = m.base.name
	}
	for _, c := range m.constructors {
		d.Constructors = append(d.Constructors, describeCallable(c))
	}
	describeTable(m.members, false, &d.Methods, &d.Properties, &d.Constants)
	describeTable(m.statics, true, &d.Methods, &d.Properties, &d.Constants)
	return d
}

// DescribeEnum builds the wire view of one enum.
func DescribeEnum(m *EnumMeta) EnumDescriptor {
	d := EnumDescriptor{
		Name: m.name,
		ID:   m.id,
		Type: m.rtype.String(),
	}
	m.Entries(func(name string, value int64) {
		d.Entries = append(d.Entries, EnumEntryDescriptor{Name: name, Value: value})
	})
	return d
}

// Describe builds the wire view of the whole registry.
func (e *Engine) Describe() RegistryDescriptor {
	d := RegistryDescriptor{EngineID: e.id}
	for _, cls := range e.Classes() {
		d.Classes = append(d.Classes, DescribeClass(cls.meta))
	}
	for _, em := range e.Enums() {
		d.Enums = append(d.Enums, DescribeEnum(em))
	}
	return d
}

// ---------------------------------------------------------------------------
// Encoding and digests
// ---------------------------------------------------------------------------

// MarshalRegistry serializes a registry descriptor to canonical CBOR.
func MarshalRegistry(d *RegistryDescriptor) ([]byte, error) {
	return cborEncMode.Marshal(d)
}

// UnmarshalRegistry deserializes a registry descriptor from CBOR bytes.
func UnmarshalRegistry(data []byte) (*RegistryDescriptor, error) {
	var d RegistryDescriptor
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal registry descriptor: %w", err)
	}
	return &d, nil
}

// MarshalClass serializes a class descriptor to canonical CBOR.
func MarshalClass(d *ClassDescriptor) ([]byte, error) {
	return cborEncMode.Marshal(d)
}

// UnmarshalClass deserializes a class descriptor from CBOR bytes.
func UnmarshalClass(data []byte) (*ClassDescriptor, error) {
	var d ClassDescriptor
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal class descriptor: %w", err)
	}
	return &d, nil
}

// Digest is the sha256 content digest of a wire descriptor.
type Digest [32]byte

// String returns the digest as lowercase hex.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// DigestClass returns the content digest of one class's wire view.
func DigestClass(m *ClassMeta) (Digest, error) {
	d := DescribeClass(m)
	buf, err := MarshalClass(&d)
	if err != nil {
		return Digest{}, err
	}
	return sha256.Sum256(buf), nil
}

// RegistryDigest returns the content digest of the engine's registry view,
// excluding the engine id so two engines with identical registrations
// digest identically.
func (e *Engine) RegistryDigest() (Digest, error) {
	d := e.Describe()
	d.EngineID = ""
	buf, err := MarshalRegistry(&d)
	if err != nil {
		return Digest{}, err
	}
	return sha256.Sum256(buf), nil
}
