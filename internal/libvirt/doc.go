// Package libvirt generates the target domain XML for converted VMs
// and talks to the local libvirt daemon when the caller asks for the
// domain to be defined directly.
package libvirt
