package bridge

// glueJS runs once per execution context, before the handler script. The
// native callbacks are captured into the closure and removed from
// globalThis so scripts can only reach them through the shapes.
// __bridge_classes holds the JSON list of registered classes.
const glueJS = `
(function(g) {
	var classInfos = g.__bridge_classes;
	var nLog = g.__bridge_log, nReq = g.__bridge_req, nHeader = g.__bridge_req_header,
		nCtGet = g.__bridge_ct_get, nCtSet = g.__bridge_ct_set,
		nWrite = g.__bridge_write, nWriteHex = g.__bridge_write_hex,
		nNew = g.__bridge_class_new, nCall = g.__bridge_class_call;
	['__bridge_classes', '__bridge_log', '__bridge_req', '__bridge_req_header', '__bridge_ct_get', '__bridge_ct_set',
		'__bridge_write', '__bridge_write_hex', '__bridge_class_new', '__bridge_class_call'
	].forEach(function(n) { delete g[n]; });

	var current = '';
	var entry = null;

	function hidden(name, value) {
		Object.defineProperty(g, name, { value: value, writable: false, enumerable: false, configurable: false });
	}
	function handleOf(o) {
		return (o && o.__h !== undefined) ? String(o.__h) : '';
	}
	function bind(shape, h) {
		var o = Object.create(shape);
		Object.defineProperty(o, '__h', { value: h });
		return o;
	}
	function hexOf(data) {
		var u8 = data instanceof ArrayBuffer
			? new Uint8Array(data)
			: new Uint8Array(data.buffer, data.byteOffset, data.byteLength);
		var digits = '0123456789abcdef';
		var out = [];
		for (var i = 0; i < u8.length; i++) {
			out.push(digits[u8[i] >> 4] + digits[u8[i] & 15]);
		}
		return out.join('');
	}

	var requestShape = {};
	['uri', 'userAgent', 'args', 'method'].forEach(function(field) {
		Object.defineProperty(requestShape, field, {
			get: function() { return nReq(handleOf(this), field); },
			enumerable: true
		});
	});
	requestShape.header = function(name) { return nHeader(handleOf(this), String(name)); };
	Object.freeze(requestShape);

	var responseShape = {};
	Object.defineProperty(responseShape, 'contentType', {
		get: function() { return nCtGet(handleOf(this)); },
		set: function(v) { nCtSet(handleOf(this), String(v)); },
		enumerable: true
	});
	responseShape.write = function(data) {
		if (data instanceof ArrayBuffer || ArrayBuffer.isView(data)) {
			nWriteHex(handleOf(this), hexOf(data));
		} else {
			nWrite(handleOf(this), String(data));
		}
	};
	Object.freeze(responseShape);

	function makeClass(name, methods) {
		var C = function() {
			if (!(this instanceof C)) {
				throw new TypeError(name + ' must be constructed with new');
			}
			var id = nNew(current, name, JSON.stringify(Array.prototype.slice.call(arguments)));
			Object.defineProperty(this, '__id', { value: id });
		};
		methods.forEach(function(m) {
			C.prototype[m] = function() {
				var out = nCall(String(this.__id), m, JSON.stringify(Array.prototype.slice.call(arguments)));
				return out === '' ? undefined : JSON.parse(out);
			};
		});
		Object.defineProperty(C, 'name', { value: name });
		return C;
	}

	var classes = {};
	JSON.parse(classInfos).forEach(function(info) {
		classes[info.name] = makeClass(info.name, info.methods);
	});

	g.log = function(message) { nLog(current, String(message)); };
	g.Components = Object.freeze({
		classes: Object.freeze(classes),
		interfaces: Object.freeze({}),
		lookup: function() { return undefined; }
	});

	hidden('__bridge_bind_entry', function() {
		if (typeof process !== 'function') return false;
		entry = process;
		return true;
	});
	hidden('__bridge_invoke', function(h) {
		current = h;
		var r = entry.call(g, bind(requestShape, h), bind(responseShape, h));
		if (typeof r === 'number' && isFinite(r) && Math.floor(r) === r) {
			// -1 is never a valid status.
			return Number.isSafeInteger(r) ? String(r) : '-1';
		}
		return '';
	});
	// Always called after __bridge_invoke, including when it threw.
	hidden('__bridge_settle', function() { current = ''; });
})(globalThis);
`
