package sim

import (
	"io"

	"github.com/rdvdev2/posix-uefi-cmake/crt/abi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/efi"
	"github.com/rdvdev2/posix-uefi-cmake/crt/mem"
	"github.com/samber/lo"
)

const (
	systemTableSignature  = 0x5453595320494249 // "IBI SYST"
	bootServicesSignature = 0x56524553544f4f42 // "BOOTSERV"
	runtimeSignature      = 0x56524553544e5552 // "RUNTSERV"
	revision              = 2<<16 | 70
)

func writeHeader(table uintptr, signature uint64, size int) {
	mem.WriteUint64(table, signature)
	mem.WriteUint32(table+8, revision)
	mem.WriteUint32(table+12, uint32(size))
}

func (fw *Firmware) buildConsoles() error {
	var err error

	newOutput := func(w io.Writer) (uintptr, error) {
		return fw.newTable(efi.OutputProtocolSize, map[uintptr]abi.Service{
			efi.OutputReset:       func(abi.Args) uint64 { return status(efi.Success) },
			efi.OutputString:      fw.outputString(w),
			efi.OutputTestString:  func(abi.Args) uint64 { return status(efi.Success) },
			efi.OutputClearScreen: func(abi.Args) uint64 { return status(efi.Success) },
		})
	}

	if fw.conOut, err = newOutput(fw.opts.Stdout); err != nil {
		return err
	}
	if fw.stdErr, err = newOutput(fw.opts.Stderr); err != nil {
		return err
	}

	if fw.conIn, err = fw.newTable(efi.InputProtocolSize, map[uintptr]abi.Service{
		efi.InputReset:         func(abi.Args) uint64 { return status(efi.Success) },
		efi.InputReadKeyStroke: fw.readKeyStroke,
	}); err != nil {
		return err
	}

	// WaitForKey only needs to be a unique event value
	fw.waitForKey = efi.Event(fw.conIn + efi.InputWaitForKey)
	mem.WriteUint64(fw.conIn+efi.InputWaitForKey, uint64(fw.waitForKey))
	return nil
}

func (fw *Firmware) buildBootServices() error {
	services := map[uintptr]abi.Service{
		efi.BootAllocatePool:     fw.allocatePool,
		efi.BootFreePool:         fw.freePool,
		efi.BootGetMemoryMap:     fw.getMemoryMap,
		efi.BootCheckEvent:       fw.checkEvent,
		efi.BootHandleProtocol:   fw.handleProtocol,
		efi.BootOpenProtocol:     fw.openProtocol,
		efi.BootExit:             fw.exit,
		efi.BootExitBootServices: fw.exitBootServices,
		efi.BootStall:            fw.stall,
	}

	// every other slot fails cleanly instead of jumping into the weeds
	unsupported := func(abi.Args) uint64 { return status(efi.Unsupported) }
	for off := uintptr(efi.HeaderSize); off < efi.BootServicesTableSize; off += 8 {
		if _, ok := services[off]; !ok {
			services[off] = unsupported
		}
	}

	// wrap every service so late calls after teardown are rejected
	for off, svc := range services {
		services[off] = fw.bootService(svc)
	}

	var err error
	if fw.boot, err = fw.newTable(efi.BootServicesTableSize, services); err != nil {
		return err
	}
	writeHeader(fw.boot, bootServicesSignature, efi.BootServicesTableSize)
	return nil
}

func (fw *Firmware) bootService(svc abi.Service) abi.Service {
	return func(args abi.Args) uint64 {
		if fw.exited {
			return status(efi.Unsupported)
		}
		return svc(args)
	}
}

func (fw *Firmware) buildRuntimeServices() error {
	var err error
	if fw.runtime, err = fw.newTable(efi.RuntimeServicesTableSize, map[uintptr]abi.Service{
		efi.RuntimeGetTime:     fw.getTime,
		efi.RuntimeResetSystem: fw.resetSystem,
	}); err != nil {
		return err
	}
	writeHeader(fw.runtime, runtimeSignature, efi.RuntimeServicesTableSize)
	return nil
}

func (fw *Firmware) buildSystemTable() error {
	var err error
	if fw.system, err = fw.calloc(efi.SystemTableSize); err != nil {
		return err
	}
	writeHeader(fw.system, systemTableSignature, efi.SystemTableSize)

	vendor, err := fw.string16(fw.opts.Vendor)
	if err != nil {
		return err
	}

	lo.ForEach([][2]uint64{
		{efi.SystemFirmwareVendor, uint64(vendor)},
		{efi.SystemConIn, uint64(fw.conIn)},
		{efi.SystemConOut, uint64(fw.conOut)},
		{efi.SystemStdErr, uint64(fw.stdErr)},
		{efi.SystemRuntimeServices, uint64(fw.runtime)},
		{efi.SystemBootServices, uint64(fw.boot)},
	}, func(field [2]uint64, _ int) {
		mem.WriteUint64(fw.system+uintptr(field[0]), field[1])
	})
	mem.WriteUint32(fw.system+efi.SystemFirmwareRevision, 0x10000)
	return nil
}

// buildImage creates the image and device handles and installs the loaded
// image, shell and file system protocols.
func (fw *Firmware) buildImage() error {
	var err error
	if fw.image, err = fw.newHandle(); err != nil {
		return err
	}
	if fw.device, err = fw.newHandle(); err != nil {
		return err
	}

	if err = fw.buildLoadedImage(); err != nil {
		return err
	}

	if fw.opts.Root != "" {
		fs, err := fw.newTable(efi.SimpleFSSize, map[uintptr]abi.Service{
			efi.SimpleFSOpenVolume: fw.openVolume,
		})
		if err != nil {
			return err
		}
		fw.install(fw.device, efi.SimpleFileSystemProtocolGUID, fs)
	}

	return fw.buildShell()
}

func (fw *Firmware) buildLoadedImage() error {
	var err error
	if fw.loadedImage, err = fw.calloc(efi.LoadedImageProtocolSize); err != nil {
		return err
	}

	li := fw.loadedImage
	mem.WriteUint32(li+efi.LoadedImageRevision, 0x1000)
	mem.WriteUint64(li+efi.LoadedImageSystemTable, uint64(fw.system))
	mem.WriteUint64(li+efi.LoadedImageDeviceHandle, uint64(fw.device))
	mem.WriteUint32(li+efi.LoadedImageCodeType, uint32(efi.LoaderCode))
	mem.WriteUint32(li+efi.LoadedImageDataType, uint32(efi.LoaderData))

	if fw.opts.LoadOptions != "" {
		units := efi.UTF16(fw.opts.LoadOptions)
		opts, err := fw.string16(fw.opts.LoadOptions)
		if err != nil {
			return err
		}
		mem.WriteUint32(li+efi.LoadedImageLoadOptionsSize, uint32(2*len(units)))
		mem.WriteUint64(li+efi.LoadedImageLoadOptions, uint64(opts))
	}

	fw.install(fw.image, efi.LoadedImageProtocolGUID, li)
	return nil
}

// SetImage records where the image was loaded in the loaded image protocol.
func (fw *Firmware) SetImage(base uintptr, size uint64) {
	mem.WriteUint64(fw.loadedImage+efi.LoadedImageImageBase, uint64(base))
	mem.WriteUint64(fw.loadedImage+efi.LoadedImageImageSize, size)
}

func (fw *Firmware) buildShell() error {
	if fw.opts.Shell == ShellNone {
		return nil
	}

	argv, err := fw.calloc(8 * (len(fw.opts.Args) + 1))
	if err != nil {
		return err
	}
	for i, arg := range fw.opts.Args {
		s, err := fw.string16(arg)
		if err != nil {
			return err
		}
		mem.WriteUint64(argv+uintptr(i)*8, uint64(s))
	}
	argc := uint64(len(fw.opts.Args))

	if fw.opts.Shell == ShellParameters || fw.opts.Shell == ShellBoth {
		params, err := fw.calloc(efi.ShellParametersSize)
		if err != nil {
			return err
		}
		mem.WriteUint64(params+efi.ShellParametersArgv, uint64(argv))
		mem.WriteUint64(params+efi.ShellParametersArgc, argc)
		// the console protocols stand in for the shell's file handles
		mem.WriteUint64(params+efi.ShellParametersStdIn, uint64(fw.conIn))
		mem.WriteUint64(params+efi.ShellParametersStdOut, uint64(fw.conOut))
		mem.WriteUint64(params+efi.ShellParametersStdErr, uint64(fw.stdErr))
		fw.install(fw.image, efi.ShellParametersProtocolGUID, params)
	}

	if fw.opts.Shell == ShellInterface || fw.opts.Shell == ShellBoth {
		shell, err := fw.calloc(efi.ShellInterfaceSize)
		if err != nil {
			return err
		}
		mem.WriteUint64(shell+efi.ShellInterfaceImageHandle, uint64(fw.image))
		mem.WriteUint64(shell+efi.ShellInterfaceInfo, uint64(fw.loadedImage))
		mem.WriteUint64(shell+efi.ShellInterfaceArgv, uint64(argv))
		mem.WriteUint64(shell+efi.ShellInterfaceArgc, argc)
		fw.install(fw.image, efi.ShellInterfaceProtocolGUID, shell)
	}

	return nil
}
