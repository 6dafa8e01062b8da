package catalog

import "drumcoder/pkg/contract"

// DefaultSounds: 内置 GM 打击乐音色（乐器号为 GM 标准打击乐键位）。
func DefaultSounds() []contract.Primitive {
	return []contract.Primitive{
		contract.Sound(31, "Stick Click", 'k'),
		contract.Sound(35, "Bass Drum 2", 'b'),
		contract.Sound(36, "Bass Drum 1", 'B'),
		contract.Sound(37, "Side Stick", 's'),
		contract.Sound(38, "Snare", 'S'),
		contract.Sound(39, "Hand Clap", 'C'),
		contract.Sound(40, "Snare (Alt)", 'z'),
		contract.Sound(41, "Low Tom", 'l'),
		contract.Sound(42, "Hi-Hat Closed", 'h'),
		contract.Sound(43, "High Floor Tom", 'H'),
		contract.Sound(44, "Hi-Hat Pedal", 'p'),
		contract.Sound(45, "Low Tom 2", 'm'),
		contract.Sound(46, "Hi-Hat Open", 'o'),
		contract.Sound(47, "Low-Mid Tom", 'M'),
		contract.Sound(48, "High-Mid Tom", 't'),
		contract.Sound(49, "Crash 1", 'c'),
		contract.Sound(50, "High Tom", 'O'),
		contract.Sound(51, "Ride 1", 'i'),
		contract.Sound(52, "Chinese Cymbal", 'I'),
		contract.Sound(53, "Ride Cymbal 1", 'D'),
		contract.Sound(54, "Tambourine", 'T'),
		contract.Sound(55, "Splash", 'L'),
		contract.Sound(56, "Cowbell", 'w'),
		contract.Sound(57, "Crash 2", 'r'),
		contract.Sound(59, "Ride 2", 'a'),
		contract.Sound(69, "Cabasa", 'A'),
		contract.Sound(92, "Shaker", 'K'),
		contract.Sound(98, "Ride Bell", 'e'),
	}
}

// DefaultLengths: 内置时值（64 分到全音符，含附点）。
func DefaultLengths() []contract.Primitive {
	return []contract.Primitive{
		contract.NoteLength(64, false, '+'),
		contract.NoteLength(32, false, '0'),
		contract.NoteLength(16, false, '1'),
		contract.NoteLength(16, true, '2'),
		contract.NoteLength(8, false, '3'),
		contract.NoteLength(8, true, '4'),
		contract.NoteLength(4, false, '5'),
		contract.NoteLength(4, true, '6'),
		contract.NoteLength(2, false, '7'),
		contract.NoteLength(2, true, '8'),
		contract.NoteLength(1, false, '9'),
	}
}

// Default 构造内置目录。内置表出现重复编码属于程序错误，直接 panic。
func Default(opts ...Option) *Catalog {
	prims := DefaultSounds()
	prims = append(prims, contract.Rest())
	prims = append(prims, DefaultLengths()...)
	c, err := New(prims, opts...)
	if err != nil {
		panic(err)
	}
	return c
}
