package enums

import "fmt"

// ContainerType describes how an ingredient is purchased.
type ContainerType string

const (
	ContainerDirect ContainerType = "direct"
	ContainerBox    ContainerType = "box"
	ContainerPack   ContainerType = "pack"
	ContainerCase   ContainerType = "case"
	ContainerBottle ContainerType = "bottle"
	ContainerBag    ContainerType = "bag"
)

var validContainerTypes = []ContainerType{
	ContainerDirect,
	ContainerBox,
	ContainerPack,
	ContainerCase,
	ContainerBottle,
	ContainerBag,
}

// String implements fmt.Stringer.
func (c ContainerType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known container type.
func (c ContainerType) IsValid() bool {
	for _, candidate := range validContainerTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsDirect reports whether stock is tracked without container math.
func (c ContainerType) IsDirect() bool {
	return c == "" || c == ContainerDirect
}

// ParseContainerType converts raw input into a ContainerType.
func ParseContainerType(value string) (ContainerType, error) {
	for _, candidate := range validContainerTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid container type %q", value)
}
