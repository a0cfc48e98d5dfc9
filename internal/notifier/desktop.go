package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsDest   = "org.freedesktop.Notifications"
	notificationsPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsNotify = notificationsDest + ".Notify"
)

// Desktop shows notifications through the freedesktop notification daemon
// on the session bus. The bus connection is opened on first use.
type Desktop struct {
	appName string
	icon    string

	mu   sync.Mutex
	conn *dbus.Conn
	obj  dbus.BusObject
}

func NewDesktop(appName, icon string) *Desktop {
	return &Desktop{appName: appName, icon: icon}
}

func (d *Desktop) Notify(ctx context.Context, n Notification) error {
	obj, err := d.object(ctx)
	if err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}

	call := obj.CallWithContext(ctx, notificationsNotify, 0,
		d.appName,
		uint32(0),
		d.icon,
		n.Summary,
		n.Body,
		[]string{},
		map[string]dbus.Variant{},
		int32(n.Duration.Milliseconds()),
	)
	if call.Err != nil {
		return fmt.Errorf("desktop notification: %w", call.Err)
	}
	return nil
}

func (d *Desktop) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	d.obj = nil
	return err
}

func (d *Desktop) object(ctx context.Context) (dbus.BusObject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.obj != nil {
		return d.obj, nil
	}

	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	d.conn = conn
	d.obj = conn.Object(notificationsDest, notificationsPath)
	return d.obj, nil
}
