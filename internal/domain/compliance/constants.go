package compliance

import "strings"

type Direction string

const (
	DirectionEntry   Direction = "Entry"
	DirectionExit    Direction = "Exit"
	DirectionUnknown Direction = "Unknown"
)

type DoorStatus string

const (
	DoorOpen    DoorStatus = "Open"
	DoorClosed  DoorStatus = "Closed"
	DoorUnknown DoorStatus = "Unknown"
)

// Schema identifies which producer generation emitted an entry.
type Schema string

const (
	SchemaV1Capitalized Schema = "v1-capitalized"
	SchemaV2Lowercase   Schema = "v2-lowercase"
	SchemaUnknown       Schema = "unknown"
)

type Equipment string

const (
	Hardhat Equipment = "Hardhat"
	Vest    Equipment = "Vest"
	Gloves  Equipment = "Gloves"
)

// AllEquipment is the canonical display order.
var AllEquipment = []Equipment{Hardhat, Vest, Gloves}

type Slot string

const (
	SlotMorning   Slot = "Morning"
	SlotAfternoon Slot = "Afternoon"
	SlotEvening   Slot = "Evening"
	SlotNight     Slot = "Night"
)

var AllSlots = []Slot{SlotMorning, SlotAfternoon, SlotEvening, SlotNight}

const (
	UnknownEmployee = "Unknown"

	// CanonicalLayout is the timestamp format every valid event carries.
	CanonicalLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
)

var timestampLayouts = []string{
	CanonicalLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05.000",
}

var (
	employeeKeys  = []string{"ID Number", "id_number", "employeeId", "employee_id"}
	directionKeys = []string{"direction", "Direction", "action", "Action"}
	frontKeys     = []string{"front", "Front", "front_sensor"}
	backKeys      = []string{"back", "Back", "back_sensor"}
	doorKeys      = []string{"door", "Door", "door_status"}
)

// ParseEquipment accepts labels case-insensitively.
func ParseEquipment(value string) (Equipment, bool) {
	for _, item := range AllEquipment {
		if strings.EqualFold(string(item), value) {
			return item, true
		}
	}
	return "", false
}
