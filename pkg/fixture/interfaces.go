/*
Copyright 2025 the Unikorn Authors.
Copyright 2026 Nscale.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package fixture

import (
	"context"
	"io"
	"time"

	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/snapshots"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumes"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumetypes"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/keypairs"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/volumeattach"
	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/images"
	"github.com/gophercloud/gophercloud/v2/openstack/loadbalancer/v2/listeners"
	"github.com/gophercloud/gophercloud/v2/openstack/loadbalancer/v2/loadbalancers"
	"github.com/gophercloud/gophercloud/v2/openstack/loadbalancer/v2/pools"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/floatingips"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/routers"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/groups"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/rules"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/ports"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/subnets"
	"github.com/gophercloud/gophercloud/v2/openstack/orchestration/v1/stacks"

	"github.com/unikorn-cloud/conformance/pkg/openstack"
)

// The interfaces here mirror the service clients one to one.  Scenarios
// consume these rather than the concrete types so unit tests can fake the
// cloud without mocking gophercloud itself.

// ComputeAPI abstracts nova.
type ComputeAPI interface {
	CreateKeypair(ctx context.Context, name, publicKey string) (*keypairs.KeyPair, error)
	DeleteKeypair(ctx context.Context, name string) error
	GetFlavors(ctx context.Context) ([]flavors.Flavor, error)
	FindFlavor(ctx context.Context, ref string) (*flavors.Flavor, error)
	CreateServer(ctx context.Context, opts *openstack.ServerCreateOpts) (*servers.Server, error)
	GetServer(ctx context.Context, id string) (*servers.Server, error)
	DeleteServer(ctx context.Context, id string) error
	RebuildServer(ctx context.Context, id, imageID string) (*servers.Server, error)
	RebootServer(ctx context.Context, id string, hard bool) error
	StartServer(ctx context.Context, id string) error
	StopServer(ctx context.Context, id string) error
	CreateServerImage(ctx context.Context, id, name string) (string, error)
	ShowConsoleOutput(ctx context.Context, id string, length int) (string, error)
	AttachVolume(ctx context.Context, serverID, volumeID string) (*volumeattach.VolumeAttachment, error)
	DetachVolume(ctx context.Context, serverID, attachmentID string) error
	WaitForServerStatus(ctx context.Context, id string, timeout, interval time.Duration, targets ...string) error
	WaitForServerDeleted(ctx context.Context, id string, timeout, interval time.Duration) error
}

// NetworkAPI abstracts neutron.
type NetworkAPI interface {
	ExternalNetworks(ctx context.Context) ([]networks.Network, error)
	FindExternalNetwork(ctx context.Context, ref string) (*networks.Network, error)
	CreateNetwork(ctx context.Context, name string) (*openstack.NetworkExt, error)
	GetNetwork(ctx context.Context, id string) (*openstack.NetworkExt, error)
	ListNetworks(ctx context.Context) ([]openstack.NetworkExt, error)
	UpdateNetwork(ctx context.Context, id string, opts networks.UpdateOpts) (*openstack.NetworkExt, error)
	DeleteNetwork(ctx context.Context, id string) error
	CreateSubnet(ctx context.Context, opts *openstack.SubnetCreateOpts) (*subnets.Subnet, error)
	GetSubnet(ctx context.Context, id string) (*subnets.Subnet, error)
	ListSubnets(ctx context.Context) ([]subnets.Subnet, error)
	DeleteSubnet(ctx context.Context, id string) error
	CreateRouter(ctx context.Context, name, externalNetworkID string) (*routers.Router, error)
	GetRouter(ctx context.Context, id string) (*routers.Router, error)
	ListRouters(ctx context.Context) ([]routers.Router, error)
	DeleteRouter(ctx context.Context, id string) error
	AddRouterInterface(ctx context.Context, routerID, subnetID string) error
	RemoveRouterInterface(ctx context.Context, routerID, subnetID string) error
	CreatePort(ctx context.Context, opts *openstack.PortCreateOpts) (*ports.Port, error)
	GetPort(ctx context.Context, id string) (*ports.Port, error)
	ListPorts(ctx context.Context, opts ports.ListOpts) ([]ports.Port, error)
	UpdatePort(ctx context.Context, id string, opts ports.UpdateOpts) (*ports.Port, error)
	DeletePort(ctx context.Context, id string) error
	CreateSecurityGroup(ctx context.Context, name string) (*groups.SecGroup, error)
	GetSecurityGroup(ctx context.Context, id string) (*groups.SecGroup, error)
	DeleteSecurityGroup(ctx context.Context, id string) error
	CreateSecurityGroupRule(ctx context.Context, opts rules.CreateOpts) (*rules.SecGroupRule, error)
	DeleteSecurityGroupRule(ctx context.Context, id string) error
	CreateFloatingIP(ctx context.Context, externalNetworkID, portID string) (*floatingips.FloatingIP, error)
	GetFloatingIP(ctx context.Context, id string) (*floatingips.FloatingIP, error)
	AssociateFloatingIP(ctx context.Context, id string, portID *string) (*floatingips.FloatingIP, error)
	DeleteFloatingIP(ctx context.Context, id string) error
	WaitForFloatingIPStatus(ctx context.Context, id, status string, timeout, interval time.Duration) error
}

// BlockStorageAPI abstracts cinder.
type BlockStorageAPI interface {
	CreateVolume(ctx context.Context, opts *openstack.VolumeCreateOpts) (*volumes.Volume, error)
	GetVolume(ctx context.Context, id string) (*volumes.Volume, error)
	DeleteVolume(ctx context.Context, id string) error
	CreateSnapshot(ctx context.Context, volumeID, name string) (*snapshots.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*snapshots.Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
	CreateVolumeType(ctx context.Context, name string) (*volumetypes.VolumeType, error)
	DeleteVolumeType(ctx context.Context, id string) error
	CreateEncryptionType(ctx context.Context, volumeTypeID string, opts *openstack.EncryptionCreateOpts) (*volumetypes.EncryptionType, error)
	WaitForVolumeStatus(ctx context.Context, id string, timeout, interval time.Duration, targets ...string) error
	WaitForVolumeDeleted(ctx context.Context, id string, timeout, interval time.Duration) error
	WaitForSnapshotStatus(ctx context.Context, id, status string, timeout, interval time.Duration) error
}

// ImageAPI abstracts glance.
type ImageAPI interface {
	CreateImage(ctx context.Context, opts *images.CreateOpts) (*images.Image, error)
	UploadImageData(ctx context.Context, id string, data io.Reader) error
	GetImage(ctx context.Context, id string) (*images.Image, error)
	ListImages(ctx context.Context, opts *images.ListOpts) ([]images.Image, error)
	FindImage(ctx context.Context, ref string) (*images.Image, error)
	DeleteImage(ctx context.Context, id string) error
	WaitForImageStatus(ctx context.Context, id string, status images.ImageStatus, timeout, interval time.Duration) error
}

// ObjectStorageAPI abstracts swift.
type ObjectStorageAPI interface {
	CreateContainer(ctx context.Context, name string) error
	DeleteContainer(ctx context.Context, name string) error
	ListContainers(ctx context.Context) ([]string, error)
	UpdateContainerACL(ctx context.Context, name string, readACL *string) error
	GetContainerACL(ctx context.Context, name string) (string, error)
	CreateObject(ctx context.Context, container, name string, content io.Reader) error
	GetObject(ctx context.Context, container, name string) ([]byte, error)
	DeleteObject(ctx context.Context, container, name string) error
	ListObjects(ctx context.Context, container string) ([]string, error)
}

// BaremetalAPI abstracts ironic.
type BaremetalAPI interface {
	GetNode(ctx context.Context, id string) (*nodes.Node, error)
	ListNodes(ctx context.Context) ([]nodes.Node, error)
	GetNodeByInstance(ctx context.Context, instanceID string) (*nodes.Node, error)
	WaitForNodeAssociated(ctx context.Context, instanceID string, timeout, interval time.Duration) (*nodes.Node, error)
	WaitForNodePowerState(ctx context.Context, id, state string, timeout, interval time.Duration) error
	WaitForNodeProvisionState(ctx context.Context, id string, timeout, interval time.Duration, targets ...string) error
}

// OrchestrationAPI abstracts heat.
type OrchestrationAPI interface {
	CreateStack(ctx context.Context, name string, template []byte, parameters map[string]string) (string, error)
	GetStack(ctx context.Context, name, id string) (*stacks.RetrievedStack, error)
	DeleteStack(ctx context.Context, name, id string) error
	WaitForStackStatus(ctx context.Context, name, id, status string, timeout, interval time.Duration) error
	WaitForStackDeleted(ctx context.Context, name, id string, timeout, interval time.Duration) error
}

// LoadBalancerAPI abstracts octavia.
type LoadBalancerAPI interface {
	CreateLoadBalancer(ctx context.Context, name, vipSubnetID string) (*loadbalancers.LoadBalancer, error)
	GetLoadBalancer(ctx context.Context, id string) (*loadbalancers.LoadBalancer, error)
	DeleteLoadBalancer(ctx context.Context, id string) error
	CreateListener(ctx context.Context, name, loadbalancerID string, port int) (*listeners.Listener, error)
	CreatePool(ctx context.Context, name, listenerID string) (*pools.Pool, error)
	CreatePoolMember(ctx context.Context, poolID, address, subnetID string, port int) (*pools.Member, error)
	WaitForLoadBalancerActive(ctx context.Context, id string, timeout, interval time.Duration) error
	WaitForLoadBalancerDeleted(ctx context.Context, id string, timeout, interval time.Duration) error
}
