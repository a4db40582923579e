package data

// Exit directions.
const (
	DirNorth = iota
	DirEast
	DirSouth
	DirWest
	DirUp
	DirDown
	NumDirs
)

// Exit info bits.
const (
	ExIsDoor    = 1 << 0
	ExClosed    = 1 << 1
	ExLocked    = 1 << 2
	ExPickproof = 1 << 3
)

// Equipment positions. Rent files store a worn item at position+1.
const (
	WearLight = iota
	WearFingerR
	WearFingerL
	WearNeck1
	WearNeck2
	WearBody
	WearHead
	WearLegs
	WearFeet
	WearHands
	WearArms
	WearShield
	WearAbout
	WearWaist
	WearWristR
	WearWristL
	WearWield
	WearHold
	NumWears
)

// Wear bitmask of an object prototype.
const (
	ItemWearTake = 1 << iota
	ItemWearFinger
	ItemWearNeck
	ItemWearBody
	ItemWearHead
	ItemWearLegs
	ItemWearFeet
	ItemWearHands
	ItemWearArms
	ItemWearShield
	ItemWearAbout
	ItemWearWaist
	ItemWearWrist
	ItemWearWield
	ItemWearHold
)

// wearFlagFor maps an equipment position to the wear bit it requires.
// Lights need none.
var wearFlagFor = [NumWears]int64{
	WearLight:   0,
	WearFingerR: ItemWearFinger,
	WearFingerL: ItemWearFinger,
	WearNeck1:   ItemWearNeck,
	WearNeck2:   ItemWearNeck,
	WearBody:    ItemWearBody,
	WearHead:    ItemWearHead,
	WearLegs:    ItemWearLegs,
	WearFeet:    ItemWearFeet,
	WearHands:   ItemWearHands,
	WearArms:    ItemWearArms,
	WearShield:  ItemWearShield,
	WearAbout:   ItemWearAbout,
	WearWaist:   ItemWearWaist,
	WearWristR:  ItemWearWrist,
	WearWristL:  ItemWearWrist,
	WearWield:   ItemWearWield,
	WearHold:    ItemWearHold,
}

// Object types.
const (
	ItemLight     = 1
	ItemScroll    = 2
	ItemWand      = 3
	ItemStaff     = 4
	ItemWeapon    = 5
	ItemTreasure  = 8
	ItemArmor     = 9
	ItemPotion    = 10
	ItemWorn      = 11
	ItemOther     = 12
	ItemTrash     = 13
	ItemContainer = 15
	ItemNote      = 16
	ItemDrinkCon  = 17
	ItemKey       = 18
	ItemFood      = 19
	ItemMoney     = 20
	ItemFountain  = 23
)

// Object extra flags used by the core.
const (
	ItemGlow   = 1 << 0
	ItemHum    = 1 << 1
	ItemNoRent = 1 << 2
)

// Affect apply locations.
const (
	ApplyNone    = 0
	ApplyStr     = 1
	ApplyDex     = 2
	ApplyInt     = 3
	ApplyWis     = 4
	ApplyCon     = 5
	ApplyCha     = 6
	ApplyAge     = 9
	ApplyMana    = 12
	ApplyHit     = 13
	ApplyMove    = 14
	ApplyAC      = 17
	ApplyHitroll = 18
	ApplyDamroll = 19
)

// MaxObjAffect is the number of apply slots on an object.
const MaxObjAffect = 6

// Mobile action flags.
const (
	MobSpec       = 1 << 0
	MobSentinel   = 1 << 1
	MobIsNPC      = 1 << 3
	MobAggressive = 1 << 5
	MobNotDeadYet = 1 << 17
)

// Player action flags, stored in the same word as mobile flags.
const (
	PlrFrozen   = 1 << 2
	PlrCrash    = 1 << 6
	PlrDeleted  = 1 << 10
	PlrLoadRoom = 1 << 11
	PlrCryo     = 1 << 15
)

// AffPoison is the affected-by bit of a poisoned character.
const AffPoison = 1 << 11

// Positions.
const (
	PosDead     = 0
	PosSleeping = 4
	PosResting  = 5
	PosSitting  = 6
	PosFighting = 7
	PosStanding = 8
)
