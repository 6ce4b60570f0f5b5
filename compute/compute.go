// Package compute is a host-side runtime layer that manages accelerator
// resources on top of an OpenCL-style compute API (the cl package).
//
// It owns the logic that isn't plain API plumbing: which physical device a
// logical Device binds to (DevicePool, power-score round-robin), the paired
// host/device buffer lifecycle (Buffer, lazy grow-only device allocation),
// and type-directed kernel argument binding and dispatch (Kernel).
//
// Typical flow:
//
//	pool := compute.NewDevicePool(driver)
//	device, err := compute.NewDevice(pool)
//	program, err := compute.BuildProgram(device, kernelSource)
//	kernel, err := compute.NewKernel(program, "saxpy")
//	x := compute.NewBufferFromSlice(device, []float32{...})
//	y := compute.NewBufferFromSlice(device, []float32{...})
//	_, err = x.UploadToDevice()
//	_, err = y.UploadToDevice()
//	_, err = kernel.Invoke(compute.MakeDim(64), compute.MakeDim(n), float32(2), x, y)
//	_, err = y.DownloadToHost()
//	err = device.Wait()
//
// Enqueued operations are asynchronous: each returns a cl.Event token, and
// Device.Wait blocks until every token issued through the Device completed.
package compute
