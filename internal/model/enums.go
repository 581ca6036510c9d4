package model

type Role string

const (
	RoleParent Role = "Parent"
	RoleChild  Role = "Child"
)

type MemberStatus string

const (
	MemberStatusNotPaired MemberStatus = "Not_Paired"
	MemberStatusActive    MemberStatus = "Active"
	MemberStatusPaused    MemberStatus = "Paused"
)

type CodeStatus string

const (
	CodeStatusPending CodeStatus = "Pending"
	CodeStatusPaired  CodeStatus = "Paired"
	CodeStatusExpired CodeStatus = "Expired"
)

type PairStatus string

const (
	PairStatusPaired  PairStatus = "Paired"
	PairStatusRemoved PairStatus = "Removed"
)

type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "Online"
	DeviceStatusOffline DeviceStatus = "Offline"
)

type DeviceType string

const (
	DeviceTypePhone  DeviceType = "Phone"
	DeviceTypeTablet DeviceType = "Tablet"
	DeviceTypeLaptop DeviceType = "Laptop"
	DeviceTypeWatch  DeviceType = "Watch"
)

var ValidDeviceTypes = []string{
	string(DeviceTypePhone),
	string(DeviceTypeTablet),
	string(DeviceTypeLaptop),
	string(DeviceTypeWatch),
}
